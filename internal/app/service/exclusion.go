package service

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ExclusionList holds merchant/store pairs the submitter must not touch.
// A pair with an empty store covers every store of that merchant. Matching
// is case-insensitive, like the schedule upsert key.
type ExclusionList struct {
	pairs     map[string]struct{} // "merchant\x00store"
	merchants map[string]struct{} // whole-merchant exclusions
}

// NewExclusionList builds a list from explicit pairs.
func NewExclusionList(pairs [][2]string) *ExclusionList {
	l := &ExclusionList{
		pairs:     make(map[string]struct{}),
		merchants: make(map[string]struct{}),
	}
	for _, p := range pairs {
		l.add(p[0], p[1])
	}
	return l
}

// LoadExclusionList reads the plain-text exclusion file: one
// "merchant_name,store_name" per line, blank store meaning all stores,
// lines starting with # and blank lines ignored.
func LoadExclusionList(path string) (*ExclusionList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open exclusion list: %w", err)
	}
	defer f.Close()

	l := NewExclusionList(nil)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		merchant, store, _ := strings.Cut(line, ",")
		l.add(merchant, store)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read exclusion list: %w", err)
	}
	return l, nil
}

func (l *ExclusionList) add(merchant, store string) {
	merchant = normalizeKey(merchant)
	store = normalizeKey(store)
	if merchant == "" {
		return
	}
	if store == "" {
		l.merchants[merchant] = struct{}{}
		return
	}
	l.pairs[merchant+"\x00"+store] = struct{}{}
}

// Excluded reports whether a merchant/store pair is on the list.
func (l *ExclusionList) Excluded(merchant, store string) bool {
	if l == nil {
		return false
	}
	merchant = normalizeKey(merchant)
	if _, ok := l.merchants[merchant]; ok {
		return true
	}
	_, ok := l.pairs[merchant+"\x00"+normalizeKey(store)]
	return ok
}

// Len returns the number of exclusion entries.
func (l *ExclusionList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.pairs) + len(l.merchants)
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
