package metrics

// DefaultHospitalDistricts maps the Hospital Authority A&E hospitals to
// their districts, used to scope the territory-wide waiting-time feed.
// Ingestion can override this with a database-backed mapping.
func DefaultHospitalDistricts() map[string]string {
	return map[string]string{
		"Alice Ho Miu Ling Nethersole Hospital": "Tai Po",
		"Caritas Medical Centre":                "Sham Shui Po",
		"Kwong Wah Hospital":                    "Yau Tsim Mong",
		"North District Hospital":               "North",
		"North Lantau Hospital":                 "Islands",
		"Princess Margaret Hospital":            "Kwai Tsing",
		"Pok Oi Hospital":                       "Yuen Long",
		"Prince of Wales Hospital":              "Sha Tin",
		"Pamela Youde Nethersole Eastern Hospital": "Eastern",
		"Queen Elizabeth Hospital":                 "Yau Tsim Mong",
		"Queen Mary Hospital":                      "Central and Western",
		"Ruttonjee Hospital":                       "Wan Chai",
		"St John Hospital":                         "Islands",
		"Tseung Kwan O Hospital":                   "Sai Kung",
		"Tin Shui Wai Hospital":                    "Yuen Long",
		"Tuen Mun Hospital":                        "Tuen Mun",
		"United Christian Hospital":                "Kwun Tong",
		"Yan Chai Hospital":                        "Tsuen Wan",
	}
}
