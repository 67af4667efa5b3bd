package pages

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/xkilldash9x/bolt/internal/driver"
)

// Lightning layout fragments shared by record and list pages.
const (
	activeRecordHost = "//div[@class='windowViewMode-normal oneContent active lafPageHost']"
	activeListHost   = "//div[@class='windowViewMode-maximized oneContent active lafPageHost' or @class='windowViewMode-normal oneContent active lafPageHost']"
)

// Locators that appear on most Lightning pages.
var (
	ToastMessage      = driver.XPath("//span[contains(@class,'toastMessage')]").Named("toast message")
	ErrorMessage      = driver.XPath("(//flexipage-error//p)[1]").Named("page error message")
	NewButton         = driver.XPath(activeListHost + "//div[@title='New']").Named("New button")
	EditButton        = driver.XPath(activeListHost + "//button[text()='Edit']").Named("Edit button")
	ListViewControls  = driver.XPath(activeListHost + "//button[@title='List View Controls']").Named("List View Controls button")
	RelatedTab        = driver.XPath(activeRecordHost + "//lightning-tab-bar/ul/li[@class='slds-tabs_default__item']/a[text()='Related']").Named("Related tab")
	DetailsTab        = driver.XPath("//a[normalize-space()='Details']").Named("Details tab")
	RecordActionsMenu = driver.XPath(activeRecordHost + "//lightning-button-menu[contains(@class,'menu')]//button").Named("record actions menu")
)

// Literal quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so a value holding both quote characters is built with concat().
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	args := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			args = append(args, `"'"`)
		}
		if p != "" {
			args = append(args, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}

// TitleXPath finds the title breadcrumb of the open record, e.g. "Account".
func TitleXPath(title string) driver.Locator {
	return driver.XPath(activeRecordHost + "//h1/div[text()=" + Literal(title) + "]").Named(title + " title")
}

// ListTitleXPath finds the breadcrumb of a list page, e.g. "Cases".
func ListTitleXPath(title string) driver.Locator {
	return driver.XPath("//lst-breadcrumbs//div//span[text()=" + Literal(title) + "]").Named(title + " list title")
}

// TextFieldValueXPath finds the value of a read-only text field by its label.
// Links, checkboxes and formatted numbers have their own layouts.
func TextFieldValueXPath(label string) driver.Locator {
	return driver.XPath("//div/div/div/span[text()=" + Literal(label) + "]/../../div[2]/span//*[@data-output-element-id='output-field']").Named(label + " value")
}

// NumberFieldValueXPath finds the value of a read-only number field by its label.
func NumberFieldValueXPath(label string) driver.Locator {
	return driver.XPath("//div/div/div/span[text()=" + Literal(label) + "]/../../div[2]/span//lightning-formatted-number").Named(label + " value")
}

// LinkFieldValueXPath finds the link value of a read-only lookup field.
func LinkFieldValueXPath(label string) driver.Locator {
	return driver.XPath("//div/div/div/span[text()=" + Literal(label) + "]/../../div[2]//div//a").Named(label + " link")
}

// TextEditXPath finds the input of an editable text field by its label.
func TextEditXPath(label string) driver.Locator {
	return driver.XPath("//label[@class='slds-form-element__label slds-no-flex'][contains(text()," + Literal(label) + ")]/../..//input").Named(label + " input")
}

// TextAreaEditXPath finds the textarea of an editable field by its label.
func TextAreaEditXPath(label string) driver.Locator {
	return driver.XPath("//*[@class='slds-form-element__label'][contains(text()," + Literal(label) + ")]/../..//textarea").Named(label + " textarea")
}

// CheckboxValueXPath finds the rendered box of a read-only checkbox field.
// Its state is read from the ::after pseudo-element.
func CheckboxValueXPath(label string) driver.Locator {
	return driver.XPath("//span[@class='slds-form-element__label slds-assistive-text'][contains(text()," + Literal(label) + ")]/../..//label/span[@class='slds-checkbox_faux']").Named(label + " checkbox")
}

// CheckboxEditXPath finds the input of an editable checkbox field.
func CheckboxEditXPath(label string) driver.Locator {
	return driver.XPath("//label[@class='slds-checkbox__label']//span[text()=" + Literal(label) + "]/../..//input").Named(label + " checkbox input")
}

// DropdownXPath finds the label of an editable picklist.
func DropdownXPath(label string) driver.Locator {
	return driver.XPath("//*[@class='slds-form-element__label'][contains(text()," + Literal(label) + ")]").Named(label + " picklist")
}

// RelatedListHeadingXPath finds the heading of a related list on the Related tab.
func RelatedListHeadingXPath(heading string) driver.Locator {
	return driver.XPath(activeRecordHost + "//h2/a/span[@title=" + Literal(heading) + "]").Named(heading + " related list")
}

// RelatedListCountXPath finds the item count next to a related list heading.
func RelatedListCountXPath(heading string) driver.Locator {
	return driver.XPath(activeRecordHost + "//h2/a/span[@title=" + Literal(heading) + "]/../span[2]").Named(heading + " related list count")
}

// AppLinkXPath finds an entry in the App Launcher.
func AppLinkXPath(name string) driver.Locator {
	return driver.XPath("//p[@class='slds-truncate'][text()=" + Literal(name) + "]").Named(name + " app link")
}

// TabXPath finds a tab in the navigation bar.
func TabXPath(name string) driver.Locator {
	return driver.XPath("//a[@title=" + Literal(name) + "]/span").Named(name + " tab")
}

// SearchResultXPath finds a highlighted global search suggestion.
func SearchResultXPath(term string) driver.Locator {
	return driver.XPath("//mark[text()=" + Literal(term) + "]").Named(term + " search result")
}

var objectIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{18}$`)

// ObjectIDFromLightningURL extracts the 18 character record id from a Lightning
// record URL such as https://org.lightning.force.com/lightning/r/Account/0019E00000rrJBNQA2/view.
// The id sits in the third or fourth path segment.
func ObjectIDFromLightningURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing record url: %w", err)
	}
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	for _, i := range []int{2, 3} {
		if i < len(segments) && objectIDPattern.MatchString(segments[i]) {
			return segments[i], nil
		}
	}
	return "", fmt.Errorf("could not obtain object id from url %s", raw)
}

// InstanceURL reduces a page URL to its scheme and host with a trailing slash,
// e.g. https://org.lightning.force.com/.
func InstanceURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing instance url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%q is not an absolute url", raw)
	}
	return u.Scheme + "://" + u.Host + "/", nil
}
