package cmd

import (
	"os"
	"strconv"
)

var (
	DefaultBuildDir    = "builds"
	DefaultConfigDir   = "/usr/share/forge/installer"
	DefaultACL         = "public-read"
	DefaultConcurrency = 4
)

const (
	EnvACL         = "FORGE_ACL"
	EnvArch        = "FORGE_ARCH"
	EnvBucket      = "FORGE_BUCKET"
	EnvBuild       = "FORGE_BUILD"
	EnvBuildDir    = "FORGE_BUILD_DIR"
	EnvConcurrency = "FORGE_CONCURRENCY"
	EnvConfigDir   = "FORGE_CONFIG_DIR"
	EnvLogLevel    = "FORGE_LOG_LEVEL"
	EnvNoColor     = "FORGE_NO_COLOR" // defaults to false
	EnvPrefix      = "FORGE_PREFIX"
	EnvRepoDir     = "FORGE_OSTREE_REPO"
)

func EnvOrDefault(key string, defaultVal string) string {
	if envVal := os.Getenv(key); envVal != "" {
		return envVal
	}
	return defaultVal
}

func BoolEnv(k string) bool {
	v := os.Getenv(k)
	return v == "true" || v == "1"
}

func IntEnv(k string, defaultVal int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return defaultVal
	}
	return v
}
