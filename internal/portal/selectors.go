package portal

// Login page.
const (
	selCompanyTab    = "#devMemTab > li:nth-child(2) > a"
	selLoginID       = "#M_ID"
	selLoginPassword = "#M_PWD"
	selLoginSubmit   = "#login-form > fieldset > section.login-input > button"
)

// Active posting listing. Item markup has shipped in several shapes.
var listingItemSelectors = []string{
	".giListItem",
	".rowWrap > li",
	"tr.devGiItem",
}

var listingTitleSelectors = []string{
	".jobTitWrap a.tit",
	"a.tit.devLinkExpire",
	".tit",
	"a[href*='GI_Read']",
}

// Applicant list.
const (
	selApplicantRows  = "#container .applicant-list-section table > tbody > tr"
	selResumeLink     = "td:nth-child(3) > a"
	selApplicantTotal = ".applicant-list-section .total-count, .applicant-list-section .total em"
)

var resumeLinkAlts = []string{"a[href*='rNo']", "a[href*='resumeNo']"}

// Page-size widening is a two-click sequence: open the size menu, pick the largest.
var pageSizeOpeners = []string{
	".applicant-list-section .page-size .btn-select",
	".applicant-list-section .select-pagesize > button",
}

const pageSizeOptionFmt = ".applicant-list-section [data-pagesize='%d']"

// Resume view.
const (
	selResumeRoot     = ".resume-view-page"
	selResumeName     = ".resume-view-page .info-general .item.name"
	selResumeNameAlt  = ".info-container > div:nth-of-type(1) > div:nth-of-type(1)"
	selResumeValues   = ".info-detail .value"
	selResumeEmail    = "a[href^='mailto:']"
	selEduFirst       = ".base.education .content-header"
	selEduName        = ".name"
	selEduLine        = ".line"
	selEduState       = ".base.education .date .state"
	selCareerCompany  = ".base.career .list-career .content-header a > div"
	selCareerPosition = ".base.career .list-career .content-header .position"
)

// Query parameters naming the applicant's resume.
var resumeIDParams = []string{"rNo", "RNo", "Rno", "resumeNo"}
