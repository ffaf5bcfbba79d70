package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/crewd/internal/testrepos"
)

func TestScanner_Scan(t *testing.T) {
	repo := testrepos.New(t)
	repo.WriteFile(t, "src/feature.ts", "export const hello = () => 'world'\n\nexport function sayHello(name: string) { return hello() }\n")
	repo.WriteFile(t, "src/models.py", "class UserModel:\n    pass\n\ndef load_user(id):\n    pass\n")
	repo.WriteFile(t, "pkg/store.go", "package store\n\ntype Store struct{}\n\nfunc (s *Store) Get(key string) string { return \"\" }\n")
	repo.WriteFile(t, "notes.txt", "not source\n")
	repo.Commit(t, "add sources")

	scanner := NewScanner(repo.Root, nil, nil, 0)
	scanned, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	byKey := make(map[string]Entry)
	for _, se := range scanned {
		byKey[se.Entry.Key()] = se.Entry
	}

	// TS arrow const and function declarations.
	hello, ok := byKey["src/feature.ts#hello"]
	require.True(t, ok)
	assert.Equal(t, EntryTypeFunction, hello.Type)
	assert.Contains(t, hello.Keywords, "hello")
	assert.Contains(t, hello.Keywords, "feature")

	sayHello, ok := byKey["src/feature.ts#sayHello"]
	require.True(t, ok)
	assert.Equal(t, EntryTypeFunction, sayHello.Type)
	// camelCase fragments are searchable individually.
	assert.Contains(t, sayHello.Keywords, "say")
	assert.Contains(t, sayHello.Keywords, "hello")

	// Python class and def.
	userModel, ok := byKey["src/models.py#UserModel"]
	require.True(t, ok)
	assert.Equal(t, EntryTypeClass, userModel.Type)

	loadUser, ok := byKey["src/models.py#load_user"]
	require.True(t, ok)
	assert.Equal(t, EntryTypeFunction, loadUser.Type)
	assert.Contains(t, loadUser.Keywords, "load")
	assert.Contains(t, loadUser.Keywords, "user")

	// Go type and method.
	storeType, ok := byKey["pkg/store.go#Store"]
	require.True(t, ok)
	assert.Equal(t, EntryTypeClass, storeType.Type)

	getFunc, ok := byKey["pkg/store.go#Get"]
	require.True(t, ok)
	assert.Equal(t, EntryTypeFunction, getFunc.Type)

	// One module entry per indexed file, carrying the union of its symbols.
	module, ok := byKey["src/feature.ts#feature.ts"]
	require.True(t, ok)
	assert.Equal(t, EntryTypeModule, module.Type)
	assert.Contains(t, module.Keywords, "hello")
	assert.Contains(t, module.Keywords, "src")

	// Non-source files never show up.
	_, ok = byKey["notes.txt#notes.txt"]
	assert.False(t, ok)
}

func TestScanner_SymbolNamedLikeFileKeepsKeysUnique(t *testing.T) {
	repo := testrepos.New(t)
	repo.WriteFile(t, "hello.go", "package hello\n\nfunc hello() {}\n")
	repo.Commit(t, "add hello")

	scanner := NewScanner(repo.Root, nil, nil, 0)
	scanned, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	seen := make(map[string]EntryType)
	for _, se := range scanned {
		key := se.Entry.Key()
		prev, dup := seen[key]
		require.False(t, dup, "key %s held by both %s and %s", key, prev, se.Entry.Type)
		seen[key] = se.Entry.Type
	}
	assert.Equal(t, EntryTypeFunction, seen["hello.go#hello"])
	assert.Equal(t, EntryTypeModule, seen["hello.go#hello.go"])
}

func TestScanner_UntrackedFilesSkipped(t *testing.T) {
	repo := testrepos.New(t)
	repo.WriteFile(t, "tracked.go", "package main\n\nfunc Tracked() {}\n")
	repo.Commit(t, "add tracked")
	repo.WriteFile(t, "untracked.go", "package main\n\nfunc Untracked() {}\n")

	scanner := NewScanner(repo.Root, nil, nil, 0)
	scanned, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	for _, se := range scanned {
		assert.NotEqual(t, "untracked.go", se.Entry.FilePath)
	}
}

func TestScanner_ExcludeOverridesInclude(t *testing.T) {
	repo := testrepos.New(t)
	repo.WriteFile(t, "app.go", "package main\n\nfunc Run() {}\n")
	repo.WriteFile(t, "app_test.go", "package main\n\nfunc TestRun(t int) {}\n")
	repo.Commit(t, "add app")

	scanner := NewScanner(repo.Root, []string{"*.go"}, []string{"*_test.go"}, 0)
	scanned, err := scanner.Scan(context.Background())
	require.NoError(t, err)

	paths := make(map[string]bool)
	for _, se := range scanned {
		paths[se.Entry.FilePath] = true
	}
	assert.True(t, paths["app.go"])
	assert.False(t, paths["app_test.go"])
}

func TestScanner_MaxFileSize(t *testing.T) {
	repo := testrepos.New(t)
	repo.WriteFile(t, "big.go", "package main\n\nfunc Big() {}\n")
	repo.Commit(t, "add big")

	scanner := NewScanner(repo.Root, nil, nil, 8)
	scanned, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, scanned)
}

func TestSplitIdentifier(t *testing.T) {
	assert.Equal(t, []string{"say", "hello"}, splitIdentifier("sayHello"))
	assert.Equal(t, []string{"load", "user"}, splitIdentifier("load_user"))
	assert.Equal(t, []string{"http", "server"}, splitIdentifier("HttpServer"))
	assert.Empty(t, splitIdentifier(""))
}
