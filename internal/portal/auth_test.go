package portal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/recruit-ops/resume-collector/internal/browser/browsertest"
)

const loginPage = `<html><body>
<ul id="devMemTab"><li><a href="#">개인회원</a></li><li><a href="#">기업회원</a></li></ul>
<form id="login-form"><fieldset><section class="login-input">
<input id="M_ID" type="text"><input id="M_PWD" type="password">
<button type="submit">로그인</button>
</section></fieldset></form>
</body></html>`

func loginSite(onSubmit browsertest.ClickFunc) *browsertest.Site {
	site := browsertest.New()
	site.Handle(testURLs().Login(), loginPage)
	site.Handle(testBase+"/Corp/GIMng/", `<html><body><div class="corp-main">기업 홈</div></body></html>`)
	site.Handle(testBase+"/Main", `<html><body><div class="home">메인</div></body></html>`)
	if onSubmit != nil {
		site.OnClick(selLoginSubmit, onSubmit)
	}
	return site
}

func TestLogin_Success(t *testing.T) {
	site := loginSite(func(_ string, values map[string]string) browsertest.ClickResult {
		if values[selLoginID] == "corp" && values[selLoginPassword] == "secret" {
			return browsertest.ClickResult{URL: testBase + "/Corp/GIMng/"}
		}
		return browsertest.ClickResult{URL: testURLs().Login()}
	})
	page := site.NewPage()

	auth := NewAuthenticator(testURLs(), "corp", "secret", fastTimeouts(), zap.NewNop())
	require.NoError(t, auth.Login(context.Background(), page))

	loc, _ := page.Location(context.Background())
	assert.Equal(t, testBase+"/Corp/GIMng/", loc)
	assert.Equal(t, "corp", site.Value(selLoginID))
	assert.Equal(t, "secret", site.Value(selLoginPassword))
}

func TestLogin_WrongCredentials(t *testing.T) {
	site := loginSite(func(string, map[string]string) browsertest.ClickResult {
		return browsertest.ClickResult{URL: testURLs().Login()}
	})

	auth := NewAuthenticator(testURLs(), "corp", "wrong", fastTimeouts(), zap.NewNop())
	err := auth.Login(context.Background(), site.NewPage())

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, err.Error(), "login form still present")
}

func TestLogin_FormGoneCountsAsLoggedIn(t *testing.T) {
	site := loginSite(func(string, map[string]string) browsertest.ClickResult {
		return browsertest.ClickResult{URL: testBase + "/Main"}
	})

	auth := NewAuthenticator(testURLs(), "corp", "secret", fastTimeouts(), zap.NewNop())
	assert.NoError(t, auth.Login(context.Background(), site.NewPage()))
}

func TestLogin_MissingCredentials(t *testing.T) {
	site := loginSite(nil)
	auth := NewAuthenticator(testURLs(), "", "", fastTimeouts(), zap.NewNop())

	var authErr *AuthenticationError
	require.ErrorAs(t, auth.Login(context.Background(), site.NewPage()), &authErr)
	assert.Empty(t, site.Visits())
}

func TestLogin_NavigationFailure(t *testing.T) {
	site := browsertest.New()
	site.FailNavigation(testURLs().Login(), errors.New("net::ERR_NAME_NOT_RESOLVED"))

	auth := NewAuthenticator(testURLs(), "corp", "secret", fastTimeouts(), zap.NewNop())
	err := auth.Login(context.Background(), site.NewPage())

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")
}
