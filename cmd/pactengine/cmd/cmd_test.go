package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// execute runs the command tree with fresh flag state and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const methodPlan = `
kind: container
label: request
children:
  - kind: container
    label: method
    children:
      - kind: action
        label: match:equality
        children:
          - {kind: value, value: {type: string, value: GET}}
          - kind: action
            label: upper-case
            children:
              - {kind: resolve, path: $.method}
          - {kind: value}
`

func TestVerifyCommand(t *testing.T) {
	dir := t.TempDir()
	planFile := writeFile(t, dir, "get.yaml", methodPlan)
	get := writeFile(t, dir, "get.json", `{"method": "get", "path": "/items"}`)
	post := writeFile(t, dir, "post.json", `{"method": "POST", "path": "/items"}`)

	tests := []struct {
		name    string
		request string
		wantErr error
	}{
		{"matching method", get, nil},
		{"different method", post, errVerificationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "verify", "--plan", planFile, "--request", tt.request, "--output", "tree")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("verify error = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(out, "match:equality") {
				t.Errorf("verify output = %s, want the executed tree", out)
			}
		})
	}
}

func TestVerifyCommandRequiresInput(t *testing.T) {
	if _, err := execute(t, "verify", "--request", "x.json"); err == nil {
		t.Errorf("verify without a plan error = nil, want error")
	}
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	gens := writeFile(t, dir, "generators.json", `{"body": {"$.id": {"type": "RandomInt", "min": 5, "max": 5}}}`)
	body := writeFile(t, dir, "body.json", `{"id": 1, "name": "x"}`)

	out, err := execute(t, "generate", "--generators", gens, "--body", body, "--seed", "7")
	if err != nil {
		t.Fatalf("generate error = %v", err)
	}
	if !strings.Contains(out, `"id": 5`) || !strings.Contains(out, `"name": "x"`) {
		t.Errorf("generate output = %s, want id replaced and name kept", out)
	}
}

func TestRulesConvertCommand(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "rules.json", `{"body": {"$.id": {"matchers": [{"match": "type"}]}}}`)

	out, err := execute(t, "rules", "convert", "--spec", "v2", rules)
	if err != nil {
		t.Fatalf("rules convert error = %v", err)
	}
	if !strings.Contains(out, `"$.body.id"`) {
		t.Errorf("rules convert output = %s, want the V2 path $.body.id", out)
	}

	if _, err := execute(t, "rules", "convert", "--spec", "v9", rules); err == nil {
		t.Errorf("rules convert --spec v9 error = nil, want error")
	}
}

func TestPlanBuildCommand(t *testing.T) {
	dir := t.TempDir()
	inter := writeFile(t, dir, "interaction.json", `{
		"description": "get items",
		"request": {"method": "GET", "path": "/items"},
		"response": {"status": 200}
	}`)
	planFile := filepath.Join(dir, "get-items.yaml")

	if _, err := execute(t, "plan", "build", "--part", "request", "-o", planFile, inter); err != nil {
		t.Fatalf("plan build error = %v", err)
	}
	out, err := execute(t, "plan", "show", planFile)
	if err != nil {
		t.Fatalf("plan show error = %v", err)
	}
	if !strings.Contains(out, "$.method") {
		t.Errorf("plan show output = %s, want the method check", out)
	}

	req := writeFile(t, dir, "actual.json", `{"method": "GET", "path": "/items"}`)
	if _, err := execute(t, "verify", "--plan", planFile, "--request", req); err != nil {
		t.Errorf("verify against the built plan error = %v", err)
	}
}

func TestContractsCommands(t *testing.T) {
	dir := t.TempDir()
	dbURL := "sqlite://" + filepath.Join(dir, "store.db")
	rules := writeFile(t, dir, "rules.json", `{"body": {"$.id": {"matchers": [{"match": "integer"}]}}}`)

	if _, err := execute(t, "migrate", "--db-url", dbURL); err != nil {
		t.Fatalf("migrate error = %v", err)
	}
	if _, err := execute(t, "contracts", "put", "orders", "--rules", rules, "--db-url", dbURL); err != nil {
		t.Fatalf("contracts put error = %v", err)
	}

	out, err := execute(t, "contracts", "list", "--db-url", dbURL)
	if err != nil {
		t.Fatalf("contracts list error = %v", err)
	}
	if !strings.Contains(out, "orders") {
		t.Errorf("contracts list output = %s, want orders", out)
	}

	if _, err := execute(t, "contracts", "delete", "orders", "--db-url", dbURL); err != nil {
		t.Fatalf("contracts delete error = %v", err)
	}
	if _, err := execute(t, "contracts", "history", "orders", "--db-url", dbURL); err == nil {
		t.Errorf("contracts history of a deleted contract error = nil, want error")
	}
}

func TestStoreRequired(t *testing.T) {
	t.Setenv("PACT_STORE_URL", "")
	if _, err := execute(t, "contracts", "list"); !errors.Is(err, errNoStore) {
		t.Errorf("contracts list error = %v, want %v", err, errNoStore)
	}
}

func TestKeysCommands(t *testing.T) {
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "store.db")
	t.Setenv("PACT_SERVER_AUTH_SECRET", strings.Repeat("x", 32))

	out, err := execute(t, "keys", "create", "ci", "--db-url", dbURL)
	if err != nil {
		t.Fatalf("keys create error = %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "pe-v1-") {
		t.Errorf("keys create output = %s, want a pe-v1 key", out)
	}

	if _, err := execute(t, "keys", "revoke", "ci", "--db-url", dbURL); err != nil {
		t.Fatalf("keys revoke error = %v", err)
	}
	out, err = execute(t, "keys", "list", "--db-url", dbURL)
	if err != nil {
		t.Fatalf("keys list error = %v", err)
	}
	if !strings.Contains(out, "ci") {
		t.Errorf("keys list output = %s, want ci", out)
	}
}
