package spj

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"nanoj/internal/judge/model"
	appErr "nanoj/pkg/errors"
)

// deniedCalls are substrings refused in uploaded checker scripts,
// matched case-insensitively. Checkers run unsandboxed, so the screen is
// the only gate between an upload and a privileged spawn.
var deniedCalls = []string{
	"eval(",
	"exec(",
	"os.system(",
	"subprocess.call(",
	"subprocess.run(",
}

// LanguageForFilename maps an upload filename to a checker language by
// extension. Only .py and .cpp are accepted.
func LanguageForFilename(filename string) (model.CheckerLanguage, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".py":
		return model.CheckerPython, nil
	case ".cpp":
		return model.CheckerCpp, nil
	default:
		return "", appErr.Newf(appErr.CheckerInvalidFormat, "unsupported checker file type: %s", filepath.Ext(filename))
	}
}

// ScreenContent refuses checker source containing any denied call.
func ScreenContent(content string) error {
	lower := strings.ToLower(content)
	for _, call := range deniedCalls {
		if strings.Contains(lower, call) {
			return appErr.Newf(appErr.CheckerUploadDenied, "checker script contains denied call: %s", call)
		}
	}
	return nil
}

// ValidateUpload runs the full upload screen: extension, UTF-8 decode,
// and the content denylist.
func ValidateUpload(filename string, content []byte) (model.CheckerLanguage, error) {
	lang, err := LanguageForFilename(filename)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(content) {
		return "", appErr.New(appErr.CheckerInvalidFormat).WithMessage("checker script must be UTF-8 text")
	}
	if err := ScreenContent(string(content)); err != nil {
		return "", err
	}
	return lang, nil
}
