package locale

// Canonical locale table. Keys are lowercase language codes; values the set
// of region codes (uppercase) the language/region pair is known for.
var canonical = map[string]map[string]bool{
	"en": {"US": true, "GB": true, "CA": true, "AU": true, "IN": true, "NZ": true, "IE": true, "ZA": true},
	"fr": {"FR": true, "CA": true, "BE": true, "CH": true},
	"de": {"DE": true, "AT": true, "CH": true},
	"es": {"ES": true, "MX": true, "AR": true, "CO": true, "CL": true, "US": true},
	"it": {"IT": true, "CH": true},
	"pt": {"PT": true, "BR": true},
	"nl": {"NL": true, "BE": true},
	"ar": {"EG": true, "SA": true, "AE": true, "MA": true},
	"ja": {"JP": true},
	"zh": {"CN": true, "TW": true, "HK": true, "SG": true},
	"ko": {"KR": true},
	"ru": {"RU": true},
	"tr": {"TR": true},
	"hi": {"IN": true},
	"sv": {"SE": true},
	"nb": {"NO": true},
	"da": {"DK": true},
	"fi": {"FI": true},
	"pl": {"PL": true},
	"cs": {"CZ": true},
	"el": {"GR": true},
	"he": {"IL": true},
	"th": {"TH": true},
	"vi": {"VN": true},
	"id": {"ID": true},
	"uk": {"UA": true},
}

// Alias table: single-token shortcuts to a full canonical pair. Covers bare
// market/country codes ("US" -> en_US) and bare language codes mapped to
// their default region ("fr" -> fr_FR).
var aliases = map[string]Token{
	// Countries / markets.
	"us":  {Language: "en", Region: "US"},
	"usa": {Language: "en", Region: "US"},
	"gb":  {Language: "en", Region: "GB"},
	"uk":  {Language: "en", Region: "GB"},
	"ca":  {Language: "en", Region: "CA"},
	"au":  {Language: "en", Region: "AU"},
	"nz":  {Language: "en", Region: "NZ"},
	"ie":  {Language: "en", Region: "IE"},
	"mx":  {Language: "es", Region: "MX"},
	"br":  {Language: "pt", Region: "BR"},
	"eg":  {Language: "ar", Region: "EG"},
	"sa":  {Language: "ar", Region: "SA"},
	"ae":  {Language: "ar", Region: "AE"},
	"jp":  {Language: "ja", Region: "JP"},
	"cn":  {Language: "zh", Region: "CN"},
	"tw":  {Language: "zh", Region: "TW"},
	"hk":  {Language: "zh", Region: "HK"},
	"kr":  {Language: "ko", Region: "KR"},
	"in":  {Language: "hi", Region: "IN"},
	"se":  {Language: "sv", Region: "SE"},
	"no":  {Language: "nb", Region: "NO"},
	"dk":  {Language: "da", Region: "DK"},
	"cz":  {Language: "cs", Region: "CZ"},
	"gr":  {Language: "el", Region: "GR"},
	"il":  {Language: "he", Region: "IL"},
	"vn":  {Language: "vi", Region: "VN"},
	"ua":  {Language: "uk", Region: "UA"},
	"at":  {Language: "de", Region: "AT"},
	"ch":  {Language: "de", Region: "CH"},
	"be":  {Language: "nl", Region: "BE"},

	// Bare languages to their default market.
	"en": {Language: "en", Region: "US"},
	"fr": {Language: "fr", Region: "FR"},
	"de": {Language: "de", Region: "DE"},
	"es": {Language: "es", Region: "ES"},
	"it": {Language: "it", Region: "IT"},
	"pt": {Language: "pt", Region: "PT"},
	"nl": {Language: "nl", Region: "NL"},
	"ar": {Language: "ar", Region: "EG"},
	"ja": {Language: "ja", Region: "JP"},
	"zh": {Language: "zh", Region: "CN"},
	"ko": {Language: "ko", Region: "KR"},
	"ru": {Language: "ru", Region: "RU"},
	"tr": {Language: "tr", Region: "TR"},
	"hi": {Language: "hi", Region: "IN"},
	"sv": {Language: "sv", Region: "SE"},
	"da": {Language: "da", Region: "DK"},
	"fi": {Language: "fi", Region: "FI"},
	"pl": {Language: "pl", Region: "PL"},
	"cs": {Language: "cs", Region: "CZ"},
	"el": {Language: "el", Region: "GR"},
	"he": {Language: "he", Region: "IL"},
	"th": {Language: "th", Region: "TH"},
	"vi": {Language: "vi", Region: "VN"},
	"id": {Language: "id", Region: "ID"},
}

// known reports whether (lang, region) is a canonical pair. Inputs must
// already be case-normalized.
func known(lang, region string) bool {
	regions, ok := canonical[lang]
	return ok && regions[region]
}
