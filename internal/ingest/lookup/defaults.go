package lookup

import "github.com/fortuna/hockeysync/internal/store"

func defaultClubs() map[string]string {
	return map[string]string{
		"Amsterdamsche H&BC":         "ahbc",
		"HC Bloemendaal":             "bloemendaal",
		"HC Rotterdam":               "rotterdam",
		"HGC":                        "hgc",
		"HC Kampong":                 "kampong",
		"SCHC":                       "schc",
		"HC 's-Hertogenbosch":        "den-bosch",
		"MHC Laren":                  "laren",
		"Pinoké":                     "pinoke",
		"HDM":                        "hdm",
		"Oranje-Rood":                "oranje-rood",
		"Hurley":                     "hurley",
		"Tilburg":                    "tilburg",
		"Klein Zwitserland":          "klein-zwitserland",
		"Victoria":                   "victoria",
		"Push":                       "push",
	}
}

// Rules are checked in order, so the more specific keywords come first:
// "women" must win over "men" for "Women's Hoofdklasse".
func defaultGenderRules() []GenderRule {
	return []GenderRule{
		{Keyword: "mixed", Gender: store.GenderMixed},
		{Keyword: "gemengd", Gender: store.GenderMixed},
		{Keyword: "women", Gender: store.GenderWomen},
		{Keyword: "womens", Gender: store.GenderWomen},
		{Keyword: "ladies", Gender: store.GenderWomen},
		{Keyword: "female", Gender: store.GenderWomen},
		{Keyword: "girls", Gender: store.GenderWomen},
		{Keyword: "dames", Gender: store.GenderWomen},
		{Keyword: "meisjes", Gender: store.GenderWomen},
		{Keyword: "vrouwen", Gender: store.GenderWomen},
		{Keyword: "men", Gender: store.GenderMen},
		{Keyword: "mens", Gender: store.GenderMen},
		{Keyword: "male", Gender: store.GenderMen},
		{Keyword: "boys", Gender: store.GenderMen},
		{Keyword: "heren", Gender: store.GenderMen},
		{Keyword: "jongens", Gender: store.GenderMen},
		{Keyword: "mannen", Gender: store.GenderMen},
	}
}

func defaultTimezones() map[string]string {
	return map[string]string{
		"CET":  "+01:00",
		"CEST": "+02:00",
		"WET":  "+00:00",
		"WEST": "+01:00",
		"BST":  "+01:00",
		"EET":  "+02:00",
		"EEST": "+03:00",
		"IST":  "+05:30",
		"AEST": "+10:00",
		"AEDT": "+11:00",
		"NZST": "+12:00",
		"NZDT": "+13:00",
		"EST":  "-05:00",
		"EDT":  "-04:00",
		"CST":  "-06:00",
		"PST":  "-08:00",
		"SAST": "+02:00",
		"ART":  "-03:00",
	}
}
