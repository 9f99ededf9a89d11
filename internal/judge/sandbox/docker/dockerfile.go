package docker

import (
	"fmt"
	"strings"
)

// imageRecipe is everything needed to render a per-run Dockerfile: the base
// image, an optional compile step, and the run step. The input file is
// copied into the image so the program reads it without an attached stdin.
type imageRecipe struct {
	BaseImage  string
	WorkDir    string
	SourceName string
	InputName  string
	CompileCmd string // empty for interpreted languages
	RunCmd     string
}

// renderDockerfile produces the build recipe for one run. The compile step
// runs at build time, so a compile failure surfaces as a build failure.
func renderDockerfile(r imageRecipe) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n", r.BaseImage)
	fmt.Fprintf(&b, "WORKDIR %s\n", r.WorkDir)
	fmt.Fprintf(&b, "COPY %s %s\n", r.SourceName, r.SourceName)
	fmt.Fprintf(&b, "COPY %s %s\n", r.InputName, r.InputName)
	if r.CompileCmd != "" {
		fmt.Fprintf(&b, "RUN %s\n", r.CompileCmd)
	}
	// Shell form: Docker wraps it in `sh -c` itself, so quotes in the run
	// command survive verbatim instead of breaking the exec-form JSON.
	fmt.Fprintf(&b, "CMD %s < %s\n", r.RunCmd, r.InputName)
	return b.String()
}
