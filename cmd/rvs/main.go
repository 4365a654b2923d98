package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rvs-vcs/rvs/internal/cli"
	"github.com/rvs-vcs/rvs/internal/gitcore"
	"github.com/rvs-vcs/rvs/internal/termcolor"
)

// Build-time variables set via -ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	gf, args := parseGlobalFlags(os.Args[1:])

	// --version is handled before app.Run because "--" prefixed args
	// would be treated as unknown commands by the dispatcher.
	for _, a := range args {
		if a == "--version" {
			printVersion()
			os.Exit(0)
		}
	}

	cw := termcolor.NewWriter(os.Stdout, gf.colorMode)

	app := cli.NewApp("rvs", version)
	app.Stderr = os.Stderr

	// repo is declared here and assigned after dispatch determines that
	// the matched command needs it (NeedsRepo). Closures capture the
	// pointer variable, which is populated before they execute.
	var repo *gitcore.Repository

	app.Register(&cli.Command{
		Name:      "init",
		Summary:   "Create an empty repository",
		Usage:     "rvs init [<directory>]",
		Examples:  []string{"rvs init", "rvs init myproject"},
		Run:       func(args []string) int { return runInit(args, discoverRepoPath(gf)) },
	})

	app.Register(&cli.Command{
		Name:      "add",
		Summary:   "Stage files for the next commit",
		Usage:     "rvs add <pathspec>...",
		Examples:  []string{"rvs add .", "rvs add src/main.go"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runAdd(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "commit",
		Summary:   "Record staged changes as a new commit",
		Usage:     "rvs commit -m <message> [--allow-empty]",
		Examples:  []string{"rvs commit -m \"fix bug\""},
		NeedsRepo: true,
		Run:       func(args []string) int { return runCommit(repo, args) },
	})

	app.Register(&cli.Command{
		Name:    "checkout",
		Summary: "Switch branches or restore working tree files",
		Usage:   "rvs checkout [-b|-B <name>] [--detach] <rev> | rvs checkout <rev> -- <paths>...",
		Examples: []string{
			"rvs checkout main",
			"rvs checkout -b feature",
			"rvs checkout HEAD~1 -- file.go",
		},
		NeedsRepo: true,
		Run:       func(args []string) int { return runCheckout(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "reset",
		Summary:   "Move HEAD and optionally the index/working tree",
		Usage:     "rvs reset [--soft|--mixed|--hard] [<rev>]",
		Examples:  []string{"rvs reset --hard HEAD~1"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runReset(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "restore",
		Summary:   "Restore working tree or staged files",
		Usage:     "rvs restore [--staged] [--source=<rev>] <paths>...",
		Examples:  []string{"rvs restore file.go", "rvs restore --staged file.go"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runRestore(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "rm",
		Summary:   "Remove files from the working tree and the index",
		Usage:     "rvs rm [--cached] [-f] <paths>...",
		Examples:  []string{"rvs rm old.go", "rvs rm --cached secret.env"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runRm(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "ls-files",
		Summary:   "List staged files",
		Usage:     "rvs ls-files",
		NeedsRepo: true,
		Run:       func(args []string) int { return runLsFiles(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "ls-tree",
		Summary:   "List the contents of a tree object",
		Usage:     "rvs ls-tree [-r] [<rev>]",
		Examples:  []string{"rvs ls-tree HEAD", "rvs ls-tree -r HEAD"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runLsTree(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "branch",
		Summary:   "List, create, or delete branches",
		Usage:     "rvs branch [<name> [<start-point>]] | rvs branch (-d|-D) <name>",
		Examples:  []string{"rvs branch", "rvs branch feature", "rvs branch -d feature"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runBranch(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "merge",
		Summary:   "Merge another branch or commit into the current branch",
		Usage:     "rvs merge <rev>",
		Examples:  []string{"rvs merge feature"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runMerge(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "rebase",
		Summary:   "Replay commits on top of another base",
		Usage:     "rvs rebase <upstream>",
		Examples:  []string{"rvs rebase main"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runRebase(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "worktree",
		Summary:   "Manage additional working trees",
		Usage:     "rvs worktree add <path> [<rev>] | list | remove <path> | lock <path> | unlock <path>",
		Examples:  []string{"rvs worktree add ../hotfix main", "rvs worktree list"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runWorktree(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "log",
		Summary:   "Show commit log",
		Usage:     "rvs log [--oneline] [-n <count>]",
		Examples:  []string{"rvs log", "rvs log --oneline -n5"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runLog(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "cat-file",
		Summary:   "Show object content, type, or size",
		Usage:     "rvs cat-file (-t|-s|-p) <object>",
		Examples:  []string{"rvs cat-file -p HEAD", "rvs cat-file -t abc1234"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runCatFile(repo, args) },
	})

	app.Register(&cli.Command{
		Name:      "diff",
		Summary:   "Show changes between the working tree, index, and HEAD",
		Usage:     "rvs diff [--cached] [<rev>] [-- <paths>...]",
		Examples:  []string{"rvs diff", "rvs diff --cached", "rvs diff HEAD~1 -- file.go"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runDiff(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "diff-tree",
		Summary:   "Compare the content of two tree-ish objects",
		Usage:     "rvs diff-tree [--stat|--name-status] <commit1> <commit2>",
		Examples:  []string{"rvs diff-tree HEAD~1 HEAD", "rvs diff-tree --stat main dev"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runDiffTree(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "show",
		Summary:   "Show commit details and diff",
		Usage:     "rvs show [--stat] [<commit>]",
		Examples:  []string{"rvs show", "rvs show --stat HEAD"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runShow(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "stash",
		Summary:   "Stash working tree changes",
		Usage:     "rvs stash push [-m <msg>] [-u] | pop | apply | list",
		Examples:  []string{"rvs stash push -m wip", "rvs stash pop"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runStash(repo, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "status",
		Summary:   "Show working tree status",
		Usage:     "rvs status [-s|--short|--porcelain]",
		Examples:  []string{"rvs status", "rvs status --porcelain"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runStatus(repo, args) },
	})

	app.Register(&cli.Command{
		Name:    "version",
		Summary: "Show version information",
		Usage:   "rvs version",
		Run:     func([]string) int { printVersion(); return 0 },
	})

	// Determine which command will run so we can load the repo only when needed.
	if len(args) > 0 {
		cmd := app.Lookup(args[0])
		if cmd != nil && cmd.NeedsRepo {
			var err error
			repo, err = gitcore.NewRepository(discoverRepoPath(gf))
			if err != nil {
				fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
				os.Exit(128)
			}
		}
	}

	os.Exit(app.Run(args, cw))
}

func printVersion() {
	fmt.Printf("rvs %s\n", version)
	fmt.Printf("  commit:     %s\n", commit)
	fmt.Printf("  built:      %s\n", buildDate)
	fmt.Printf("  go version: %s\n", runtime.Version())
	fmt.Printf("  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
