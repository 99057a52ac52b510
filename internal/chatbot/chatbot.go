// Package chatbot はFAQ形式の質問に回答するチャットボットを提供する。
//
// 回答は埋め込みのFAQデータに対するキーワードスコアリングで選択する。
// 質問が資料検索とみなせる場合はリソースリポジトリを横断検索して
// 一致した資料を提示する。
package chatbot

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/UgochukwuChidera/resourcehub/internal/repository"
)

//go:embed faq.json
var faqFS embed.FS

// fallbackAnswer はどのFAQにも一致しない場合の応答。
const fallbackAnswer = "I'm not sure about that one. Try rephrasing your question, or email the resource hub team at support@resourcehub.example.edu."

// maxSuggestions は資料検索で提示する最大件数。
const maxSuggestions = 5

// faqEntry は埋め込みFAQデータの1項目。
type faqEntry struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Keywords []string `json:"keywords"`
}

// Reply はチャットボットの応答。
type Reply struct {
	// Answer は表示用の回答テキスト。
	Answer string `json:"answer"`
	// Matched は一致したFAQ項目のID。一致なしの場合は空。
	Matched string `json:"matched,omitempty"`
	// Resources は資料検索で見つかったリソース。
	Resources []model.Resource `json:"resources,omitempty"`
}

// Service はFAQチャットボット。
type Service struct {
	entries   []faqEntry
	resources repository.ResourceRepository
}

// NewService は埋め込みFAQデータを読み込んでServiceを生成する。
func NewService(resources repository.ResourceRepository) (*Service, error) {
	raw, err := faqFS.ReadFile("faq.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded FAQ data: %w", err)
	}

	var entries []faqEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse FAQ data: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("FAQ data is empty")
	}

	return &Service{
		entries:   entries,
		resources: resources,
	}, nil
}

// Ask は質問に対する回答を返す。
// 「find/search/looking for ...」形式の質問はリソース検索として扱い、
// それ以外はFAQのキーワードスコアリングで最良の回答を選ぶ。
func (s *Service) Ask(ctx context.Context, question string) (*Reply, error) {
	words := tokenize(question)
	if len(words) == 0 {
		return &Reply{Answer: fallbackAnswer}, nil
	}

	if term, ok := searchTerm(words); ok && s.resources != nil {
		return s.searchResources(ctx, term)
	}

	best, score := s.bestEntry(words)
	if score == 0 {
		return &Reply{Answer: fallbackAnswer}, nil
	}
	return &Reply{Answer: best.Answer, Matched: best.ID}, nil
}

// bestEntry はキーワードの一致数が最大のFAQ項目を返す。
// 同点の場合は先に定義された項目を優先する。
func (s *Service) bestEntry(words []string) (*faqEntry, int) {
	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		wordSet[w] = struct{}{}
	}

	bestScore := 0
	var best *faqEntry
	for i := range s.entries {
		score := 0
		for _, kw := range s.entries[i].Keywords {
			if _, ok := wordSet[strings.ToLower(kw)]; ok {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = &s.entries[i]
		}
	}
	return best, bestScore
}

// searchResources は検索語でリソースを横断検索して応答を組み立てる。
func (s *Service) searchResources(ctx context.Context, term string) (*Reply, error) {
	found, err := s.resources.Search(ctx, repository.ResourceFilter{Term: term})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return &Reply{
			Answer: fmt.Sprintf("I couldn't find any resources matching %q. Try a broader search term on the Resources page.", term),
		}, nil
	}
	if len(found) > maxSuggestions {
		found = found[:maxSuggestions]
	}

	names := make([]string, 0, len(found))
	for _, r := range found {
		names = append(names, r.Name)
	}
	return &Reply{
		Answer:    fmt.Sprintf("I found %d matching resource(s): %s.", len(found), strings.Join(names, "; ")),
		Resources: found,
	}, nil
}

// searchIntents は資料検索の意図を示す先頭語。
var searchIntents = map[string]struct{}{
	"find":   {},
	"search": {},
	"show":   {},
}

// searchStopWords は検索語から除外する機能語。
var searchStopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "me": {}, "for": {},
	"resource": {}, "resources": {}, "material": {}, "materials": {},
	"on": {}, "about": {}, "some": {}, "any": {}, "please": {},
}

// searchTerm は質問が資料検索とみなせる場合に検索語を抽出する。
func searchTerm(words []string) (string, bool) {
	if len(words) < 2 {
		return "", false
	}
	if _, ok := searchIntents[words[0]]; !ok {
		return "", false
	}

	terms := make([]string, 0, len(words)-1)
	for _, w := range words[1:] {
		if _, skip := searchStopWords[w]; skip {
			continue
		}
		terms = append(terms, w)
	}
	if len(terms) == 0 {
		return "", false
	}
	return strings.Join(terms, " "), true
}

// tokenize は質問を小文字の単語列に分解する。
func tokenize(question string) []string {
	return strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
