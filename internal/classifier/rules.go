package classifier

import "github.com/a3tai/mcp-form-reader/internal/form"

// autocompleteTypes maps autocomplete field-name tokens to taxonomies
var autocompleteTypes = map[string]form.Taxonomy{
	"name":             form.TaxonomyFullName,
	"given-name":       form.TaxonomyFirstName,
	"family-name":      form.TaxonomyLastName,
	"email":            form.TaxonomyEmail,
	"tel":              form.TaxonomyPhone,
	"tel-national":     form.TaxonomyPhone,
	"tel-local":        form.TaxonomyPhone,
	"tel-country-code": form.TaxonomyCountryCode,
	"address-level2":   form.TaxonomyCity,
	"address-level1":   form.TaxonomyLocation,
	"street-address":   form.TaxonomyLocation,
	"address-line1":    form.TaxonomyLocation,
	"postal-code":      form.TaxonomyLocation,
	"country":          form.TaxonomyLocation,
	"country-name":     form.TaxonomyLocation,
	"url":              form.TaxonomyPortfolio,
	"sex":              form.TaxonomyEEOGender,
}

// inputTypes maps the input type attribute to taxonomies
var inputTypes = map[string]form.Taxonomy{
	"email": form.TaxonomyEmail,
	"tel":   form.TaxonomyPhone,
	"url":   form.TaxonomyPortfolio,
}

// nameRules are tested against the lowercased name and id, first match wins
var nameRules = []Rule{
	{Type: form.TaxonomyLinkedIn, Patterns: []string{`linkedin`}},
	{Type: form.TaxonomyGitHub, Patterns: []string{`github`}},
	{Type: form.TaxonomyPortfolio, Patterns: []string{`portfolio`, `website`, `personal.?site`, `homepage`, `blog`}},
	{Type: form.TaxonomyEmail, Patterns: []string{`e.?mail`}},
	{Type: form.TaxonomyCountryCode, Patterns: []string{`country.?code`, `dial.?code`, `calling.?code`, `phone.?code`}},
	{Type: form.TaxonomyPhone, Patterns: []string{`phone`, `mobile`, `\btel\b`, `cell`}},
	{Type: form.TaxonomyFirstName, Patterns: []string{`first.?name`, `given.?name`, `fname`, `forename`, `\bfirst\b`}},
	{Type: form.TaxonomyLastName, Patterns: []string{`last.?name`, `family.?name`, `surname`, `lname`, `\blast\b`}},
	{Type: form.TaxonomyGradMonth, Patterns: []string{`grad\w*.?month`, `end.?month`}},
	{Type: form.TaxonomyGradYear, Patterns: []string{`grad\w*.?year`, `class.?of`, `end.?year`}},
	{Type: form.TaxonomyGradDate, Patterns: []string{`grad\w*.?date`, `graduation`, `completion.?date`}},
	{Type: form.TaxonomySchool, Patterns: []string{`school`, `university`, `college`, `institution`}},
	{Type: form.TaxonomyDegree, Patterns: []string{`degree`, `qualification`}},
	{Type: form.TaxonomyMajor, Patterns: []string{`major`, `field.?of.?study`, `discipline`, `speciali[sz]ation`, `concentration`}},
	{Type: form.TaxonomyNeedSponsorship, Patterns: []string{`sponsor`, `visa`}},
	{Type: form.TaxonomyWorkAuth, Patterns: []string{`work.?auth`, `authori[sz]`, `eligib`, `right.?to.?work`, `legally`}},
	{Type: form.TaxonomyEEOGender, Patterns: []string{`gender`, `\bsex\b`}},
	{Type: form.TaxonomyEEORace, Patterns: []string{`race`, `ethnic`}},
	{Type: form.TaxonomyEEOVeteran, Patterns: []string{`veteran`, `military`}},
	{Type: form.TaxonomyEEODisability, Patterns: []string{`disab`}},
	{Type: form.TaxonomyGovID, Patterns: []string{`\bssn\b`, `social.?security`, `national.?id`, `passport`, `gov\w*.?id`, `tax.?id`}},
	{Type: form.TaxonomySalary, Patterns: []string{`salary`, `compensation`, `pay.?expect`, `wage`}},
	{Type: form.TaxonomyResumeText, Patterns: []string{`resume`, `\bcv\b`, `curriculum`}},
	{Type: form.TaxonomyCity, Patterns: []string{`city`, `town`}},
	{Type: form.TaxonomyLocation, Patterns: []string{`location`, `address`, `country`, `state`, `\bzip`, `postal`, `region`}},
	{
		Type:     form.TaxonomyFullName,
		Patterns: []string{`full.?name`, `\bname\b`, `your.?name`, `legal.?name`},
		Exclude:  []string{`company`, `employer`, `user.?name`, `file`, `reference`, `referrer`},
	},
}

// labelRules are tested against the normalized label text, first match wins
var labelRules = []Rule{
	{Type: form.TaxonomyLinkedIn, Patterns: []string{`linkedin`}},
	{Type: form.TaxonomyGitHub, Patterns: []string{`github`}},
	{Type: form.TaxonomyPortfolio, Patterns: []string{`portfolio`, `personal (web)?site`, `website`, `作品集`, `个人网站`}},
	{Type: form.TaxonomyEmail, Patterns: []string{`e-?mail`, `邮箱`, `电子邮件`}},
	{Type: form.TaxonomyCountryCode, Patterns: []string{`country code`, `dial(ing)? code`, `calling code`, `国家代码`, `区号`}},
	{Type: form.TaxonomyPhone, Patterns: []string{`phone`, `mobile`, `\bcell\b`, `电话`, `手机`}},
	{Type: form.TaxonomyFirstName, Patterns: []string{`first name`, `given name`, `forename`, `名字`, `^名$`}},
	{Type: form.TaxonomyLastName, Patterns: []string{`last name`, `family name`, `surname`, `^姓$`, `姓氏`}},
	{Type: form.TaxonomyNeedSponsorship, Patterns: []string{`sponsor`, `\bvisa\b`, `签证`}},
	{Type: form.TaxonomyWorkAuth, Patterns: []string{`authori[sz]ed to work`, `work authori[sz]ation`, `legally (authori[sz]ed|eligible|permitted)`, `eligible to work`, `right to work`, `工作许可`, `工作授权`}},
	{Type: form.TaxonomyGradMonth, Patterns: []string{`graduation month`, `grad(uation)? month`, `毕业月份`}},
	{Type: form.TaxonomyGradYear, Patterns: []string{`graduation year`, `year of graduation`, `class of`, `毕业年份`}},
	{Type: form.TaxonomyGradDate, Patterns: []string{`graduation date`, `date of graduation`, `expected graduation`, `graduat`, `毕业时间`, `毕业日期`}},
	{Type: form.TaxonomySchool, Patterns: []string{`school`, `university`, `college`, `institution`, `学校`, `大学`, `院校`}},
	{Type: form.TaxonomyDegree, Patterns: []string{`degree`, `qualification`, `学位`, `学历`}},
	{Type: form.TaxonomyMajor, Patterns: []string{`\bmajor\b`, `field of study`, `area of study`, `discipline`, `专业`}},
	{Type: form.TaxonomyEEOGender, Patterns: []string{`gender`, `\bsex\b`, `性别`}},
	{Type: form.TaxonomyEEORace, Patterns: []string{`\brace\b`, `ethnicity`, `种族`, `民族`}},
	{Type: form.TaxonomyEEOVeteran, Patterns: []string{`veteran`, `military`, `退伍`}},
	{Type: form.TaxonomyEEODisability, Patterns: []string{`disabilit`, `残疾`}},
	{Type: form.TaxonomyGovID, Patterns: []string{`social security`, `\bssn\b`, `national id`, `passport`, `government id`, `身份证`}},
	{Type: form.TaxonomySalary, Patterns: []string{`salary`, `compensation`, `pay expectation`, `薪资`, `薪酬`, `期望薪`}},
	{Type: form.TaxonomyResumeText, Patterns: []string{`resume`, `\bcv\b`, `curriculum vitae`, `简历`}},
	{Type: form.TaxonomyCity, Patterns: []string{`\bcity\b`, `\btown\b`, `城市`}},
	{Type: form.TaxonomyLocation, Patterns: []string{`location`, `address`, `where are you based`, `country`, `所在地`, `地址`, `国家`}},
	{Type: form.TaxonomyFullName, Patterns: []string{`full name`, `^name\b`, `your name`, `legal name`, `姓名`}},
}

// sectionBoosts raise label candidates that match the section theme
var sectionBoosts = []SectionBoost{
	{
		Pattern: `education|academic|教育`,
		Types: []form.Taxonomy{
			form.TaxonomySchool, form.TaxonomyDegree, form.TaxonomyMajor,
			form.TaxonomyGradDate, form.TaxonomyGradYear, form.TaxonomyGradMonth,
		},
	},
	{
		Pattern: `equal (employment )?opportunit|\beeo\b|voluntary self|self.?identification|平等`,
		Types: []form.Taxonomy{
			form.TaxonomyEEOGender, form.TaxonomyEEORace,
			form.TaxonomyEEOVeteran, form.TaxonomyEEODisability,
		},
	},
}
