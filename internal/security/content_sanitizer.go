// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はユーザー入力（リソース名・説明・キーワード・
// プロフィール名）をサニタイズし、XSS攻撃などのセキュリティリスクから
// ユーザーを保護する。bluemondayライブラリを使用する。
package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー入力のサニタイズ機能のインターフェースを定義する。
// リソースのアップロード時とプロフィール更新時に使用される。
type ContentSanitizerService interface {
	// SanitizeText はプレーンテキストフィールド（リソース名、説明、
	// キーワード、プロフィール名）からHTMLタグをすべて除去する。
	// 前後の空白もトリムする。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string

	// SanitizeRichText はFAQ回答などの限定的なリッチテキストをサニタイズする。
	// 許可タグ（p, br, a, ul, ol, li, code, strong, em）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグにはtarget="_blank"とrel="noopener noreferrer"が自動付与される。
	SanitizeRichText(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのポリシーを2つ構築する:
//   - strict: 全タグ除去（StrictPolicy）。メタデータ系フィールド用。
//   - rich: 許可タグのみ通過。FAQ回答用。
func NewContentSanitizer() *contentSanitizer {
	rich := bluemonday.NewPolicy()

	// script, iframe, style等は許可リストに含めないことで自動的に除去される
	// on*イベント属性はbluemondayのデフォルトで許可されない
	rich.AllowElements(
		"p", "br", "ul", "ol", "li",
		"code", "strong", "em",
	)

	// aタグ: href許可、相対URL不許可、target="_blank"とrelを強制付与
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowRelativeURLs(false)
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoReferrerOnLinks(true)
	rich.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &contentSanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   rich,
	}
}

// SanitizeText はプレーンテキストフィールドからHTMLタグをすべて除去する。
func (s *contentSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(s.strict.Sanitize(raw))
}

// SanitizeRichText は限定的なリッチテキストをサニタイズする。
func (s *contentSanitizer) SanitizeRichText(rawHTML string) string {
	return s.rich.Sanitize(rawHTML)
}
