package cli

import (
	"flag"
	"os"

	"github.com/osforge/forge/cmd"
)

var flagSet = flag.NewFlagSet("forge", flag.ExitOnError)

func FlagVersion(version *bool) {
	flagSet.BoolVar(version, "version", false, "show version")
}

func FlagLogLevel(level *string) {
	flagSet.StringVar(level, "log-level", cmd.EnvOrDefault(cmd.EnvLogLevel, cmd.DefaultLogLevel), "logging level")
}

func FlagNoColor(skip *bool) {
	flagSet.BoolVar(skip, "no-color", cmd.BoolEnv(cmd.EnvNoColor), "disable color output")
}

func FlagBuild(id *string) {
	flagSet.StringVar(id, "build", os.Getenv(cmd.EnvBuild), "build id (default: latest from the build index)")
}

func FlagBuildDir(dir *string) {
	flagSet.StringVar(dir, "build-dir", cmd.EnvOrDefault(cmd.EnvBuildDir, cmd.DefaultBuildDir), "path to the builds directory")
}

func FlagRepoDir(dir *string) {
	flagSet.StringVar(dir, "repo", os.Getenv(cmd.EnvRepoDir), "path to the ostree repository")
}

func FlagConfigDir(dir *string) {
	flagSet.StringVar(dir, "config-dir", cmd.EnvOrDefault(cmd.EnvConfigDir, cmd.DefaultConfigDir), "path to the installer configuration payload")
}

func FlagArch(arch *string) {
	flagSet.StringVar(arch, "arch", os.Getenv(cmd.EnvArch), "target architecture (default: runtime architecture)")
}

func FlagForce(force *bool) {
	flagSet.BoolVar(force, "force", false, "re-assemble even if an installer image is already registered")
}

func FlagBucket(bucket *string) {
	flagSet.StringVar(bucket, "bucket", os.Getenv(cmd.EnvBucket), "destination bucket")
}

func FlagPrefix(prefix *string) {
	flagSet.StringVar(prefix, "prefix", os.Getenv(cmd.EnvPrefix), "key prefix within the destination bucket")
}

func FlagACL(acl *string) {
	flagSet.StringVar(acl, "acl", cmd.EnvOrDefault(cmd.EnvACL, cmd.DefaultACL), "canned ACL for uploaded objects")
}

func FlagCompressRewrite(enable *bool) {
	flagSet.BoolVar(enable, "compress-rewrite", false, "serve gzip-compressed artifacts under their uncompressed names")
}

func FlagDryRun(dryRun *bool) {
	flagSet.BoolVar(dryRun, "dry-run", false, "print the upload plan without performing network operations")
}

func FlagFreshen(freshen *bool) {
	flagSet.BoolVar(freshen, "freshen", false, "push only the build index, skip artifacts")
}

func FlagSkipIndex(skip *bool) {
	flagSet.BoolVar(skip, "skip-index", false, "push artifacts, skip the build index")
}

func FlagConcurrency(n *int) {
	flagSet.IntVar(n, "concurrency", cmd.IntEnv(cmd.EnvConcurrency, cmd.DefaultConcurrency), "maximum parallel artifact uploads")
}
