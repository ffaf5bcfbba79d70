package index

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/crewd/internal/gitcmd"
)

// scannedEntry pairs an entry with the text used for embedding.
type scannedEntry struct {
	Entry Entry

	// EmbedText is the declaration context handed to the embedding
	// provider. Not persisted.
	EmbedText string
}

// symbolPattern extracts a symbol declaration from a source line.
type symbolPattern struct {
	re    *regexp.Regexp
	typ   EntryType
	group int
}

// Lightweight structural parsing: declaration-line regexes per language
// family. Good enough for context retrieval; not a compiler.
var symbolPatterns = []symbolPattern{
	// Go
	{regexp.MustCompile(`^func\s+(?:\([^)]+\)\s+)?([A-Za-z_]\w*)\s*\(`), EntryTypeFunction, 1},
	{regexp.MustCompile(`^type\s+([A-Za-z_]\w*)\s+(?:struct|interface)\b`), EntryTypeClass, 1},
	// JavaScript / TypeScript
	{regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s+([A-Za-z_$][\w$]*)`), EntryTypeFunction, 1},
	{regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*(?:async\s*)?(?:\([^)]*\)|[A-Za-z_$][\w$]*)\s*=>`), EntryTypeFunction, 1},
	{regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:abstract\s+)?class\s+([A-Za-z_$][\w$]*)`), EntryTypeClass, 1},
	// Python
	{regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`), EntryTypeFunction, 1},
	{regexp.MustCompile(`^\s*class\s+([A-Za-z_]\w*)\s*[(:]`), EntryTypeClass, 1},
}

// sourceExtensions limits scanning to source files the parser understands.
var sourceExtensions = map[string]bool{
	".go": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".mjs": true, ".cjs": true, ".py": true,
}

// Scanner extracts symbol entries from the tracked files of a worktree.
type Scanner struct {
	root            string
	includePatterns []string
	excludePatterns []string
	maxFileSize     int64
}

// NewScanner creates a scanner rooted at a git worktree.
func NewScanner(root string, include, exclude []string, maxFileSize int64) *Scanner {
	if maxFileSize <= 0 {
		maxFileSize = 1024 * 1024
	}
	return &Scanner{
		root:            root,
		includePatterns: include,
		excludePatterns: exclude,
		maxFileSize:     maxFileSize,
	}
}

// Scan lists git-tracked files under the root and extracts entries.
// Output is deterministic: sorted by file path, then declaration order.
func (s *Scanner) Scan(ctx context.Context) ([]scannedEntry, error) {
	listing, err := gitcmd.Run(ctx, s.root, "ls-files")
	if err != nil {
		return nil, fmt.Errorf("list tracked files: %w", err)
	}
	if listing == "" {
		return nil, nil
	}

	files := strings.Split(listing, "\n")
	sort.Strings(files)

	var entries []scannedEntry
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.shouldIndex(rel) {
			continue
		}
		fileEntries, err := s.scanFile(rel)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileEntries...)
	}
	return entries, nil
}

// shouldIndex applies extension, include and exclude filters.
// Exclude patterns take precedence over include patterns.
func (s *Scanner) shouldIndex(rel string) bool {
	if !sourceExtensions[filepath.Ext(rel)] {
		return false
	}
	base := filepath.Base(rel)
	for _, pattern := range s.excludePatterns {
		if matched, _ := filepath.Match(pattern, rel); matched {
			return false
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}
	if len(s.includePatterns) == 0 {
		return true
	}
	for _, pattern := range s.includePatterns {
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func (s *Scanner) scanFile(rel string) ([]scannedEntry, error) {
	abs := filepath.Join(s.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			// Tracked but deleted in the worktree; skip, the next
			// commit's rebuild prunes it.
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", rel, err)
	}
	if info.Size() > s.maxFileSize {
		return nil, nil
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", rel, err)
	}
	defer f.Close()

	stem := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	moduleKeywords := newKeywordSet()
	moduleKeywords.addIdentifier(stem)
	for _, seg := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if seg != "" && seg != "." {
			moduleKeywords.addIdentifier(seg)
		}
	}

	var symbols []scannedEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		for _, pattern := range symbolPatterns {
			m := pattern.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			symbol := m[pattern.group]
			keywords := newKeywordSet()
			keywords.addIdentifier(symbol)
			keywords.addIdentifier(stem)
			moduleKeywords.addIdentifier(symbol)

			symbols = append(symbols, scannedEntry{
				Entry: Entry{
					FilePath: rel,
					Symbol:   symbol,
					Type:     pattern.typ,
					Keywords: keywords.sorted(),
				},
				EmbedText: fmt.Sprintf("%s %s in %s: %s", pattern.typ, symbol, rel, strings.TrimSpace(line)),
			})
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}

	// One module entry per indexed file, carrying the union of its symbols.
	// Its symbol is the file name: identifiers cannot contain dots, so the
	// (FilePath, Symbol) key never collides with a symbol named like the
	// file's stem.
	base := filepath.Base(rel)
	module := scannedEntry{
		Entry: Entry{
			FilePath: rel,
			Symbol:   base,
			Type:     EntryTypeModule,
			Keywords: moduleKeywords.sorted(),
		},
		EmbedText: fmt.Sprintf("module %s (%s)", base, rel),
	}

	return append([]scannedEntry{module}, symbols...), nil
}

// keywordSet accumulates lowercased keyword tokens.
type keywordSet map[string]struct{}

func newKeywordSet() keywordSet { return make(keywordSet) }

// addIdentifier adds the identifier itself plus its camelCase and
// snake_case fragments, all lowercased.
func (k keywordSet) addIdentifier(ident string) {
	ident = strings.Trim(ident, "_$")
	if ident == "" {
		return
	}
	k[strings.ToLower(ident)] = struct{}{}
	for _, part := range splitIdentifier(ident) {
		if len(part) > 1 {
			k[part] = struct{}{}
		}
	}
}

func (k keywordSet) sorted() []string {
	out := make([]string, 0, len(k))
	for word := range k {
		out = append(out, word)
	}
	sort.Strings(out)
	return out
}

// splitIdentifier breaks camelCase, PascalCase and snake_case identifiers
// into lowercased fragments.
func splitIdentifier(ident string) []string {
	var parts []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			parts = append(parts, strings.ToLower(string(current)))
			current = current[:0]
		}
	}
	for _, r := range ident {
		switch {
		case r == '_' || r == '-' || r == '.' || r == '$':
			flush()
		case unicode.IsUpper(r):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	return parts
}
