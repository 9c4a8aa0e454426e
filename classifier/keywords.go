package classifier

import "github.com/rchlabs/rch/internal/trie"

// negativeKeywords are first-token verbs that are never a compile: file
// utilities, VCS, network tools, text editors, process/container control.
// A Tier 0 match is decisive even if a Tier 1 token appears later in the
// same command (left-bias, per the pipeline's strict tier order).
var negativeKeywords = []string{
	"cd", "ls", "pwd", "mv", "cp", "rm", "rmdir", "mkdir", "touch", "cat",
	"less", "more", "head", "tail", "grep", "find", "xargs", "sed", "awk",
	"chmod", "chown", "ln",
	"git", "svn", "hg",
	"curl", "wget", "ssh", "scp", "rsync", "ping", "nc", "netcat",
	"vim", "vi", "nano", "emacs", "code",
	"docker", "kubectl", "podman",
	"ps", "kill", "top", "htop",
	"echo", "export", "alias", "source", "which", "whoami", "man",
}

// positiveKeywords are build-tool first tokens that earn a command a shot
// at Tier 2 validation.
var positiveKeywords = []string{
	"cargo", "rustc",
	"go", "gofmt",
	"gcc", "g++", "clang", "clang++", "cc",
	"make", "cmake", "ninja", "bazel", "buck2",
	"javac", "mvn", "gradle", "gradlew",
	"tsc", "swiftc", "swift",
	"ld", "ar",
	"msbuild", "dotnet",
	"zig",
}

var negativeTrie = buildTrie(negativeKeywords)
var positiveTrie = buildTrie(positiveKeywords)

func buildTrie(words []string) *trie.Trie {
	t := trie.New()
	for _, w := range words {
		t.Insert(w)
	}
	return t
}

// sourceExtensions are argument file extensions that count as compile
// evidence in the Tier 3 heuristic score.
var sourceExtensions = []string{
	".c", ".cc", ".cpp", ".cxx", ".h", ".hpp",
	".rs", ".go", ".java", ".kt", ".ts", ".tsx", ".swift", ".zig",
}

// manifestFiles are project manifests whose presence in the working
// directory is evidence of a real build tree, for the Tier 3 score.
var manifestFiles = []string{
	"Cargo.toml", "go.mod", "Makefile", "CMakeLists.txt",
	"package.json", "pom.xml", "build.gradle", "build.gradle.kts",
	"BUILD", "BUILD.bazel", "WORKSPACE",
}

// nonCompileSubcommands are subcommands whose primary effect is execution,
// testing, or documentation rather than compilation; Tier 2 rejects them
// even though the base command is a recognised build tool.
var nonCompileSubcommands = map[string]bool{
	"run": true, "test": true, "bench": true, "doc": true, "fmt": true,
}

var helpFlags = map[string]bool{
	"--help": true, "-h": true, "--version": true, "-v": true, "-V": true,
}
