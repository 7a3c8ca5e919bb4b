// Package spam classifies listing titles that match a luxury brand name
// but are actually unrelated goods (car parts named "undercover", Celine
// cosmetics, lookalike labels). Pure string matching, no side effects.
package spam

import "strings"

// Per-brand deny patterns. These are terms known to produce false-positive
// brand matches on the auction site search.
var brandDenyLists = map[string][]string{
	"Celine": {
		"レディース", "women", "femme", "ladies",
		"wallet", "財布", "purse", "bag", "バッグ", "ポーチ", "pouch",
		"earring", "pierce", "ピアス", "イヤリング", "ring", "指輪",
		"necklace", "ネックレス", "bracelet", "ブレスレット",
		"perfume", "香水", "fragrance", "cologne", "cosmetic", "化粧品",
		"keychain", "キーホルダー", "sticker", "ステッカー",
	},
	"Bottega Veneta": {
		"wallet", "財布", "purse", "clutch", "クラッチ",
		"bag", "バッグ", "handbag", "ハンドバッグ", "tote", "トート",
		"pouch", "ポーチ", "case", "ケース",
		"earring", "pierce", "ピアス", "イヤリング", "ring", "指輪",
		"necklace", "ネックレス", "bracelet", "ブレスレット",
		"heel", "ヒール", "pump", "パンプ", "sandal", "サンダル",
		"dress", "ドレス", "skirt", "スカート",
		"perfume", "香水", "fragrance",
	},
	"Undercover": {
		"cb400sf", "cb1000sf", "cb1300sf", "cb400sb", "cbx400f", "cb750f",
		"vtr250", "ジェイド", "ホーネット", "undercowl", "アンダーカウル",
		"mr2", "bmw", "エンジン", "motorcycle", "engine", "5upj",
		"アンダーカバー", "under cover", "フロント", "リア",
	},
	"Rick Owens": {
		"ifsixwasnine", "share spirit", "kmrii", "14th addiction", "goa",
		"civarize", "fuga", "tornado mart", "l.g.b", "midas", "ekam",
	},
	"Chrome Hearts": {
		"luxe", "luxe/r", "luxe r", "ラグジュ", "doll bear",
	},
}

// Markers of genuine archive pieces. Any of these overrides the generic
// deny set below.
var allowKeywords = []string{
	"archive", "アーカイブ", "vintage", "ヴィンテージ", "rare", "レア",
	"runway", "ランウェイ", "collection", "コレクション", "fw", "ss",
	"mainline", "メインライン", "homme", "オム",
}

// Catch-all junk terms for brands without a dedicated deny list.
var genericDeny = []string{"motorcycle", "engine", "server", "perfume", "香水"}

// IsSpam classifies a title for a given brand. Evaluation order, first
// match wins: brand deny list, then allow keywords, then generic deny.
func IsSpam(title, brand string) bool {
	titleLower := strings.ToLower(title)

	if patterns, ok := brandDenyLists[brand]; ok {
		for _, p := range patterns {
			if strings.Contains(titleLower, strings.ToLower(p)) {
				return true
			}
		}
	}

	for _, kw := range allowKeywords {
		if strings.Contains(titleLower, strings.ToLower(kw)) {
			return false
		}
	}

	for _, p := range genericDeny {
		if strings.Contains(titleLower, p) {
			return true
		}
	}

	return false
}
