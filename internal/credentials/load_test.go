package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_CSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.csv", "password,email\n/8eC$AD>,aysultan_talgat_1@fest.tix\nLDb60_%]4,ayaulym_bazarbaeva_3@quick.pass\n")

	ids, err := LoadFile("users.csv", dir)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, Identity{Email: "aysultan_talgat_1@fest.tix", Secret: "/8eC$AD>"}, ids[0])
	assert.Equal(t, "ayaulym_bazarbaeva_3@quick.pass", ids[1].Email)
}

func TestLoadFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "users.json", `[{"email":"a@fest.tix","password":"x"},{"email":"b@fest.tix","password":"y"}]`)

	ids, err := LoadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, []Identity{{Email: "a@fest.tix", Secret: "x"}, {Email: "b@fest.tix", Secret: "y"}}, ids)
}

func TestLoadFile_YAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "users.yaml", "- email: a@fest.tix\n  password: x\n")

	ids, err := LoadFile("users.yaml", dir)
	require.NoError(t, err)
	assert.Equal(t, []Identity{{Email: "a@fest.tix", Secret: "x"}}, ids)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unsupported extension", "users.txt", "x", "unsupported credentials format"},
		{"csv without rows", "empty.csv", "email,password\n", "header row and at least one data row"},
		{"csv without password column", "nopass.csv", "email\na@b\n", "email and password columns"},
		{"json not an array", "obj.json", `{"email":"a"}`, "array of objects"},
		{"empty json array", "none.json", `[]`, "credential pool is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeFile(t, dir, tt.file, tt.content)
			_, err := LoadFile(tt.file, dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadFile("missing.csv", dir)
	assert.Error(t, err)
}
