package form

import "strings"

// Taxonomy represents the semantic meaning of a fillable control
type Taxonomy string

const (
	TaxonomyUnknown         Taxonomy = "UNKNOWN"
	TaxonomyFullName        Taxonomy = "FULL_NAME"
	TaxonomyFirstName       Taxonomy = "FIRST_NAME"
	TaxonomyLastName        Taxonomy = "LAST_NAME"
	TaxonomyEmail           Taxonomy = "EMAIL"
	TaxonomyPhone           Taxonomy = "PHONE"
	TaxonomyCountryCode     Taxonomy = "COUNTRY_CODE"
	TaxonomyCity            Taxonomy = "CITY"
	TaxonomyLocation        Taxonomy = "LOCATION"
	TaxonomySchool          Taxonomy = "SCHOOL"
	TaxonomyDegree          Taxonomy = "DEGREE"
	TaxonomyMajor           Taxonomy = "MAJOR"
	TaxonomyGradDate        Taxonomy = "GRAD_DATE"
	TaxonomyGradYear        Taxonomy = "GRAD_YEAR"
	TaxonomyGradMonth       Taxonomy = "GRAD_MONTH"
	TaxonomyWorkAuth        Taxonomy = "WORK_AUTH"
	TaxonomyNeedSponsorship Taxonomy = "NEED_SPONSORSHIP"
	TaxonomyEEOGender       Taxonomy = "EEO_GENDER"
	TaxonomyEEORace         Taxonomy = "EEO_RACE"
	TaxonomyEEOVeteran      Taxonomy = "EEO_VETERAN"
	TaxonomyEEODisability   Taxonomy = "EEO_DISABILITY"
	TaxonomyGovID           Taxonomy = "GOV_ID"
	TaxonomySalary          Taxonomy = "SALARY"
	TaxonomyResumeText      Taxonomy = "RESUME_TEXT"
	TaxonomyLinkedIn        Taxonomy = "LINKEDIN"
	TaxonomyGitHub          Taxonomy = "GITHUB"
	TaxonomyPortfolio       Taxonomy = "PORTFOLIO"
)

var allTaxonomies = []Taxonomy{
	TaxonomyFullName, TaxonomyFirstName, TaxonomyLastName,
	TaxonomyEmail, TaxonomyPhone, TaxonomyCountryCode,
	TaxonomyCity, TaxonomyLocation,
	TaxonomySchool, TaxonomyDegree, TaxonomyMajor,
	TaxonomyGradDate, TaxonomyGradYear, TaxonomyGradMonth,
	TaxonomyWorkAuth, TaxonomyNeedSponsorship,
	TaxonomyEEOGender, TaxonomyEEORace, TaxonomyEEOVeteran, TaxonomyEEODisability,
	TaxonomyGovID, TaxonomySalary, TaxonomyResumeText,
	TaxonomyLinkedIn, TaxonomyGitHub, TaxonomyPortfolio,
	TaxonomyUnknown,
}

// Taxonomies returns every known taxonomy value, UNKNOWN last
func Taxonomies() []Taxonomy {
	out := make([]Taxonomy, len(allTaxonomies))
	copy(out, allTaxonomies)
	return out
}

// ParseTaxonomy resolves a taxonomy name, case-insensitively
func ParseTaxonomy(s string) (Taxonomy, bool) {
	for _, t := range allTaxonomies {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return TaxonomyUnknown, false
}

// IsEducation reports whether t belongs to the education group
func (t Taxonomy) IsEducation() bool {
	switch t {
	case TaxonomySchool, TaxonomyDegree, TaxonomyMajor,
		TaxonomyGradDate, TaxonomyGradYear, TaxonomyGradMonth:
		return true
	}
	return false
}

// IsEEO reports whether t is one of the equal-opportunity self-identification types
func (t Taxonomy) IsEEO() bool {
	switch t {
	case TaxonomyEEOGender, TaxonomyEEORace, TaxonomyEEOVeteran, TaxonomyEEODisability:
		return true
	}
	return false
}

// IsName reports whether t is one of the personal name types
func (t Taxonomy) IsName() bool {
	return t == TaxonomyFullName || t == TaxonomyFirstName || t == TaxonomyLastName
}
