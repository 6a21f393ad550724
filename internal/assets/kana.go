// Package assets knows the finite kana alphabet that ships with pre-recorded
// clips, and how to fetch those clips from a directory or an HTTP server.
package assets

// Kana is one token of the alphabet.
type Kana struct {
	Romaji   string
	Hiragana string
	Katakana string
	Row      string // gojūon row, e.g. "k" for か き く け こ; "" for vowels
}

// Romaji follows Hepburn except for ぢ/づ, which use "di"/"du" so every
// token is unique.
var table = []Kana{
	{"a", "あ", "ア", ""}, {"i", "い", "イ", ""}, {"u", "う", "ウ", ""}, {"e", "え", "エ", ""}, {"o", "お", "オ", ""},
	{"ka", "か", "カ", "k"}, {"ki", "き", "キ", "k"}, {"ku", "く", "ク", "k"}, {"ke", "け", "ケ", "k"}, {"ko", "こ", "コ", "k"},
	{"sa", "さ", "サ", "s"}, {"shi", "し", "シ", "s"}, {"su", "す", "ス", "s"}, {"se", "せ", "セ", "s"}, {"so", "そ", "ソ", "s"},
	{"ta", "た", "タ", "t"}, {"chi", "ち", "チ", "t"}, {"tsu", "つ", "ツ", "t"}, {"te", "て", "テ", "t"}, {"to", "と", "ト", "t"},
	{"na", "な", "ナ", "n"}, {"ni", "に", "ニ", "n"}, {"nu", "ぬ", "ヌ", "n"}, {"ne", "ね", "ネ", "n"}, {"no", "の", "ノ", "n"},
	{"ha", "は", "ハ", "h"}, {"hi", "ひ", "ヒ", "h"}, {"fu", "ふ", "フ", "h"}, {"he", "へ", "ヘ", "h"}, {"ho", "ほ", "ホ", "h"},
	{"ma", "ま", "マ", "m"}, {"mi", "み", "ミ", "m"}, {"mu", "む", "ム", "m"}, {"me", "め", "メ", "m"}, {"mo", "も", "モ", "m"},
	{"ya", "や", "ヤ", "y"}, {"yu", "ゆ", "ユ", "y"}, {"yo", "よ", "ヨ", "y"},
	{"ra", "ら", "ラ", "r"}, {"ri", "り", "リ", "r"}, {"ru", "る", "ル", "r"}, {"re", "れ", "レ", "r"}, {"ro", "ろ", "ロ", "r"},
	{"wa", "わ", "ワ", "w"}, {"wo", "を", "ヲ", "w"},
	{"n", "ん", "ン", "nn"},

	{"ga", "が", "ガ", "g"}, {"gi", "ぎ", "ギ", "g"}, {"gu", "ぐ", "グ", "g"}, {"ge", "げ", "ゲ", "g"}, {"go", "ご", "ゴ", "g"},
	{"za", "ざ", "ザ", "z"}, {"ji", "じ", "ジ", "z"}, {"zu", "ず", "ズ", "z"}, {"ze", "ぜ", "ゼ", "z"}, {"zo", "ぞ", "ゾ", "z"},
	{"da", "だ", "ダ", "d"}, {"di", "ぢ", "ヂ", "d"}, {"du", "づ", "ヅ", "d"}, {"de", "で", "デ", "d"}, {"do", "ど", "ド", "d"},
	{"ba", "ば", "バ", "b"}, {"bi", "び", "ビ", "b"}, {"bu", "ぶ", "ブ", "b"}, {"be", "べ", "ベ", "b"}, {"bo", "ぼ", "ボ", "b"},
	{"pa", "ぱ", "パ", "p"}, {"pi", "ぴ", "ピ", "p"}, {"pu", "ぷ", "プ", "p"}, {"pe", "ぺ", "ペ", "p"}, {"po", "ぽ", "ポ", "p"},
}

var byRomaji = func() map[string]Kana {
	m := make(map[string]Kana, len(table))
	for _, k := range table {
		m[k.Romaji] = k
	}
	return m
}()

// Alphabet returns every romaji token in gojūon order.
func Alphabet() []string {
	out := make([]string, len(table))
	for i, k := range table {
		out[i] = k.Romaji
	}
	return out
}

// Table returns the full alphabet in gojūon order.
func Table() []Kana {
	return append([]Kana(nil), table...)
}

// Rows groups the alphabet by gojūon row, preserving order.
func Rows() [][]Kana {
	var rows [][]Kana
	for i, k := range table {
		if i == 0 || table[i-1].Row != k.Row {
			rows = append(rows, nil)
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], k)
	}
	return rows
}

// IsKana reports whether token is a member of the alphabet. The match is
// exact, like cache keys.
func IsKana(token string) bool {
	_, ok := byRomaji[token]
	return ok
}

// Lookup returns the kana for a romaji token.
func Lookup(token string) (Kana, bool) {
	k, ok := byRomaji[token]
	return k, ok
}

// Hiragana returns the hiragana for token, or token itself when it is not
// in the alphabet.
func Hiragana(token string) string {
	if k, ok := byRomaji[token]; ok {
		return k.Hiragana
	}
	return token
}
