package cmd

import (
	"fmt"
	"os"
	"strings"
)

const (
	// CodeFailed is the generic failure exit code. Subprocess failures and
	// inconsistent-state errors land here unless a more specific code applies.
	CodeFailed = 1

	CodeForInvalidArgs = 3
	// CodeForNotFound covers missing inputs: an absent build record, commit,
	// kernel-module directory, or an artifact that exists neither locally nor
	// remotely.
	CodeForNotFound = 4
)

type ErrorFail struct {
	Err    error
	Code   int
	Action []string
}

func (e *ErrorFail) Error() string {
	message := "failed to " + strings.Join(e.Action, " ")
	if e.Err == nil {
		return message
	}
	return fmt.Sprintf("%s: %s", message, e.Err)
}

func FailCode(code int, action ...string) *ErrorFail {
	return FailErrCode(nil, code, action...)
}

func FailErr(err error, action ...string) *ErrorFail {
	code := CodeFailed
	if err, ok := err.(*ErrorFail); ok {
		code = err.Code
	}
	return FailErrCode(err, code, action...)
}

func FailErrCode(err error, code int, action ...string) *ErrorFail {
	return &ErrorFail{Err: err, Code: code, Action: action}
}

func Exit(err error) {
	if err == nil {
		os.Exit(0)
	}
	DefaultLogger.Errorf("%s\n", err)
	if err, ok := err.(*ErrorFail); ok {
		os.Exit(err.Code)
	}
	os.Exit(CodeFailed)
}

func ExitWithVersion() {
	DefaultLogger.Infof("%s", buildVersion())
	os.Exit(0)
}
