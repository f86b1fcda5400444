package generate

import (
	"strconv"
	"text/template"
)

var funcs = template.FuncMap{
	"quote": strconv.Quote,
}

var pomTemplate = template.Must(template.New("pom").Funcs(funcs).Parse(`"""Auto-generated Page Object Model for Playwright."""

from playwright.sync_api import Page, expect


class {{.ClassName}}:
    """Page Object for {{.URL}}"""

    def __init__(self, page: Page) -> None:
        """Initialize page elements."""
        self.page = page
{{- range .Locators}}
        self.{{.Name}} = self.page.{{.Call}}({{quote .Value}})
{{- end}}

    def goto(self) -> None:
        """Navigate to the page."""
        self.page.goto({{quote .URL}})
{{- range .Actions}}

    def {{.Method}}(self{{if .Param}}, {{.Param}}{{end}}) -> None:
        {{.Body}}
{{- end}}
`))

var specTemplate = template.Must(template.New("spec").Funcs(funcs).Parse(`import { test, expect } from '@playwright/test';

test.describe('{{.ClassName}} Page', () => {
{{- range .Stories}}
  // Story: {{.}}
{{- end}}
  test.beforeEach(async ({ page }) => {
    await page.goto({{quote .URL}});
  });

  test('should load the page', async ({ page }) => {
    await expect(page.locator('body')).toBeVisible();
  });
{{- range .Locators}}

  test('should show {{.Name}}', async ({ page }) => {
    await expect(page.{{.Call}}({{quote .Value}}).first()).toBeVisible();
  });
{{- end}}
});
`))
