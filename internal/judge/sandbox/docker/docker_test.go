package docker

import (
	"strings"
	"testing"
)

func TestRenderDockerfilePython(t *testing.T) {
	got := renderDockerfile(imageRecipe{
		BaseImage:  "python:3.9-slim",
		WorkDir:    "/workspace",
		SourceName: "main.py",
		InputName:  "input.txt",
		RunCmd:     "python3 main.py",
	})

	want := []string{
		"FROM python:3.9-slim",
		"WORKDIR /workspace",
		"COPY main.py main.py",
		"COPY input.txt input.txt",
		"CMD python3 main.py < input.txt",
	}
	for _, line := range want {
		if !strings.Contains(got, line) {
			t.Errorf("dockerfile missing line %q:\n%s", line, got)
		}
	}
	if strings.Contains(got, "RUN ") {
		t.Errorf("python dockerfile should have no compile step:\n%s", got)
	}
}

func TestRenderDockerfileQuotedRunCmd(t *testing.T) {
	got := renderDockerfile(imageRecipe{
		BaseImage:  "python:3.9-slim",
		WorkDir:    "/workspace",
		SourceName: "main.py",
		InputName:  "input.txt",
		RunCmd:     `python3 -X utf8 -c "exec(open('main.py').read())"`,
	})

	if !strings.Contains(got, `CMD python3 -X utf8 -c "exec(open('main.py').read())" < input.txt`) {
		t.Errorf("quoted run command must survive verbatim:\n%s", got)
	}
	// Exec-form CMD would need JSON escaping of the inner quotes.
	if strings.Contains(got, `CMD ["`) {
		t.Errorf("run step must use shell form:\n%s", got)
	}
}

func TestRenderDockerfileCppCompilesAtBuildTime(t *testing.T) {
	got := renderDockerfile(imageRecipe{
		BaseImage:  "gcc:11",
		WorkDir:    "/workspace",
		SourceName: "main.cpp",
		InputName:  "input.txt",
		CompileCmd: "g++ -O2 -o main main.cpp",
		RunCmd:     "./main",
	})

	lines := strings.Split(strings.TrimSpace(got), "\n")
	runIdx, cmdIdx := -1, -1
	for i, line := range lines {
		if strings.HasPrefix(line, "RUN ") {
			runIdx = i
		}
		if strings.HasPrefix(line, "CMD ") {
			cmdIdx = i
		}
	}
	if runIdx == -1 {
		t.Fatalf("cpp dockerfile missing compile step:\n%s", got)
	}
	if cmdIdx == -1 || cmdIdx < runIdx {
		t.Fatalf("compile step must precede run step:\n%s", got)
	}
	if !strings.Contains(lines[runIdx], "g++ -O2 -o main main.cpp") {
		t.Errorf("unexpected compile step: %s", lines[runIdx])
	}
}

func TestParseMemUsageMB(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "1.5MiB / 128MiB", want: 1},
		{in: "512KiB / 128MiB", want: 0},
		{in: "2GiB / 4GiB", want: 2048},
		{in: "96B / 128MiB", want: 0},
		{in: "23.04MiB / 128MiB", want: 23},
		{in: "no separator", wantErr: true},
		{in: "12XB / 1MiB", wantErr: true},
		{in: "abcMiB / 1MiB", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseMemUsageMB(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseMemUsageMB(%q) expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseMemUsageMB(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMemUsageMB(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNewContainerName(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		name := newContainerName()
		if !strings.HasPrefix(name, "oj_judge_") {
			t.Fatalf("unexpected container name %q", name)
		}
		suffix := strings.TrimPrefix(name, "oj_judge_")
		if len(suffix) != 8 {
			t.Fatalf("suffix %q should be 8 chars", suffix)
		}
		for _, c := range suffix {
			if !strings.ContainsRune("0123456789abcdef", c) {
				t.Fatalf("suffix %q should be lowercase hex", suffix)
			}
		}
		if seen[name] {
			t.Fatalf("duplicate container name %q", name)
		}
		seen[name] = true
	}
}
