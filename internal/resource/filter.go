package resource

import (
	"strings"

	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/UgochukwuChidera/resourcehub/internal/repository"
)

// Filter はキャッシュ済みのリソース一覧に検索条件を適用する純粋関数。
// 条件はAND結合: termはname/descriptionへの大文字小文字無視の部分一致、
// またはkeywords要素との完全一致。year/type/courseは完全一致。
// ゼロ値の条件は無視する。SQL検索と同じ結果を返すこと。
// 入力スライスは変更しない。
func Filter(resources []model.Resource, filter repository.ResourceFilter) []model.Resource {
	term := strings.TrimSpace(filter.Term)

	matched := make([]model.Resource, 0, len(resources))
	for _, r := range resources {
		if term != "" && !matchesTerm(&r, term) {
			continue
		}
		if filter.Year != 0 && r.Year != filter.Year {
			continue
		}
		if filter.Type != "" && string(r.Type) != filter.Type {
			continue
		}
		if filter.Course != "" && r.Course != filter.Course {
			continue
		}
		matched = append(matched, r)
	}
	return matched
}

func matchesTerm(r *model.Resource, term string) bool {
	lowerTerm := strings.ToLower(term)
	if strings.Contains(strings.ToLower(r.Name), lowerTerm) {
		return true
	}
	if strings.Contains(strings.ToLower(r.Description), lowerTerm) {
		return true
	}
	// keywordsはSQL側の = ANY(keywords) と同じく要素の完全一致
	for _, kw := range r.Keywords {
		if kw == term {
			return true
		}
	}
	return false
}
