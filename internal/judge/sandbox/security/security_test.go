package security

import "testing"

func TestValidateDeniesPrograms(t *testing.T) {
	denied := []string{
		"rm", "rmdir", "del", "format", "mkfs", "dd", "shred", "sudo", "su",
		"chmod", "chown", "mount", "umount", "iptables", "firewall",
		"service", "systemctl", "ssh", "scp", "wget", "curl", "nc",
		"telnet", "docker", "kubectl", "helm",
	}
	for _, program := range denied {
		if err := Validate(Command{Program: program, Args: []string{"x"}}); err == nil {
			t.Errorf("Validate allowed denied program %q", program)
		}
	}
}

func TestValidateDeniesAbsolutePathVariants(t *testing.T) {
	if err := Validate(Command{Program: "/bin/rm", Args: []string{"-r", "/"}}); err == nil {
		t.Fatal("Validate allowed /bin/rm")
	}
	if err := Validate(Command{Program: "RM"}); err == nil {
		t.Fatal("Validate allowed uppercased rm")
	}
}

func TestValidateDeniesFlags(t *testing.T) {
	cases := []struct {
		name string
		cmd  Command
	}{
		{"exact rf", Command{Program: "cp", Args: []string{"-rf", "a", "b"}}},
		{"recursive", Command{Program: "cp", Args: []string{"--recursive"}}},
		{"force last", Command{Program: "mv", Args: []string{"a", "b", "--force"}}},
		{"no preserve root", Command{Program: "find", Args: []string{"--no-preserve-root"}}},
		{"flag substring", Command{Program: "find", Args: []string{"--force-remove"}}},
		{"exec", Command{Program: "find", Args: []string{".", "-exec"}}},
		{"privileged", Command{Program: "podman", Args: []string{"run", "--privileged"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(tc.cmd); err == nil {
				t.Fatalf("Validate allowed %v", tc.cmd)
			}
		})
	}
}

func TestValidateAllowsBenignCommands(t *testing.T) {
	cases := []Command{
		{Program: "python", Args: []string{"main.py"}},
		{Program: "python3", Args: []string{"main.py"}},
		{Program: "g++", Args: []string{"-o", "main", "main.cpp"}},
		{Program: "./main"},
		{Program: "gcc", Args: []string{"-O2", "-o", "main", "main.c"}},
	}
	for _, cmd := range cases {
		if err := Validate(cmd); err != nil {
			t.Errorf("Validate denied benign command %v: %v", cmd, err)
		}
	}
}

func TestValidateDenialIsArgumentOrderIndependent(t *testing.T) {
	orders := [][]string{
		{"-rf", "a", "b"},
		{"a", "-rf", "b"},
		{"a", "b", "-rf"},
	}
	for _, args := range orders {
		if err := Validate(Command{Program: "cp", Args: args}); err == nil {
			t.Errorf("Validate allowed -rf at position in %v", args)
		}
	}
}

func TestParse(t *testing.T) {
	cmd, err := Parse("g++ -o main main.cpp")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Program != "g++" || len(cmd.Args) != 3 {
		t.Fatalf("unexpected parse result: %+v", cmd)
	}

	if _, err := Parse("   "); err == nil {
		t.Fatal("Parse accepted empty command")
	}

	quoted, err := Parse(`python -c "print('hi')"`)
	if err != nil {
		t.Fatalf("Parse quoted: %v", err)
	}
	if len(quoted.Args) != 2 || quoted.Args[1] != "print('hi')" {
		t.Fatalf("unexpected quoted args: %v", quoted.Args)
	}
}

func TestValidateLine(t *testing.T) {
	if err := ValidateLine("python main.py"); err != nil {
		t.Fatalf("benign line denied: %v", err)
	}
	if err := ValidateLine("rm -rf /"); err == nil {
		t.Fatal("dangerous line allowed")
	}
}
