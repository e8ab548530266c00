package languages

// Language is a language a solution may be written in. The set is closed: only
// the constants below are valid, and Parse is the only way in from user input.
type Language string

const (
	TypeScript Language = "typescript"
	JavaScript Language = "javascript"
	Python     Language = "python"
)

// RuntimeConfig describes how a language is provisioned and run inside a sandbox.
type RuntimeConfig struct {
	Extension       string
	RunCommand      string // interpreter invocation; completed by Command
	SandboxLanguage string
	Image           string
}

// SourceFile is the file name the user's solution is uploaded as.
func (c RuntimeConfig) SourceFile() string {
	return "solution." + c.Extension
}

// RunnerFile is the file name the runner template is uploaded as.
func (c RuntimeConfig) RunnerFile() string {
	return "runner." + c.Extension
}

// Command completes the run command for the given runner and input files.
func (c RuntimeConfig) Command(runnerFile, inputFile string) string {
	return c.RunCommand + " " + runnerFile + " " + inputFile
}

func (l Language) String() string {
	return string(l)
}
