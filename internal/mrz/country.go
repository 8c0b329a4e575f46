package mrz

// countryNames maps ISO 3166-1 alpha-3 codes to display names for the
// platform's operating region and major nationalities.
var countryNames = map[string]string{
	"UZB": "Uzbekistan",
	"KAZ": "Kazakhstan",
	"TJK": "Tajikistan",
	"KGZ": "Kyrgyzstan",
	"TKM": "Turkmenistan",
	"RUS": "Russia",
	"AZE": "Azerbaijan",
	"USA": "United States",
	"GBR": "United Kingdom",
	"DEU": "Germany",
	"FRA": "France",
	"ITA": "Italy",
	"ESP": "Spain",
	"TUR": "Turkey",
	"ARE": "United Arab Emirates",
	"SAU": "Saudi Arabia",
	"KOR": "South Korea",
	"JPN": "Japan",
	"CHN": "China",
	"IND": "India",
	"CAN": "Canada",
	"AUS": "Australia",
}

// CountryName resolves a 3-letter country code to its display name.
// Unknown codes pass through unchanged.
func CountryName(code string) string {
	if name, ok := countryNames[normalizeLine(code)]; ok {
		return name
	}
	return code
}
