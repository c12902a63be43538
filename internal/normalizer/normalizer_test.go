package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVerbs(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"navigate alias", "navigate example.com", "goto example.com"},
		{"nav alias", "nav example.com", "goto example.com"},
		{"go to alias", "go to example.com", "goto example.com"},
		{"scan alias", "scan", "observe"},
		{"quit alias", "quit", "exit"},
		{"accept cookies", "accept cookies", "accept_cookies"},
		{"uppercase verb", "CLICK 5", "click 5"},
		{"mixed case verb", "Goto example.com", "goto example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizeQuotes(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"single to double", `click 'Submit'`, `click "Submit"`},
		{"double kept", `click "Submit"`, `click "Submit"`},
		{"single with spaces", `click 'Add to Cart'`, `click "Add to Cart"`},
		{"escaped single quote", `type name 'it\'s'`, `type name "it's"`},
		{"inner double escaped", `click 'say "hi"'`, `click "say \"hi\""`},
		{"escaped double kept", `click "say \"hi\""`, `click "say \"hi\""`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizeComments(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"comment line kept", "# just a note", "# just a note"},
		{"trailing comment", "click 5 # press it", "click 5 # press it"},
		{"fragment not comment", "goto example.com#frag", "goto example.com#frag"},
		{"glued hash stays", "click 5#comment", "click 5#comment"},
		{"hash inside quotes", `type name "#hashtag"`, `type name "#hashtag"`},
		{"blank lines dropped", "click 5\n\n\nclick 6", "click 5\nclick 6"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizeSelectors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"bare css quoted", `click css(.btn)`, `click css(".btn")`},
		{"single quoted css", `click css('.btn')`, `click css(".btn")`},
		{"double quoted kept", `click css(".btn")`, `click css(".btn")`},
		{"css with spaces", `click css(div > .btn)`, `click css("div > .btn")`},
		{"uppercase kind", `click CSS(.btn)`, `click css(".btn")`},
		{"xpath quoted", `click xpath(//a[1])`, `click xpath("//a[1]")`},
		{
			"xpath with inner quotes",
			`click xpath(//a[@id="x"])`,
			`click xpath("//a[@id=\"x\"]")`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizeJSON(t *testing.T) {
	assert.Equal(t,
		`headers set "{\"X-Test\": \"1\"}"`,
		Normalize(`headers set {"X-Test": "1"}`))
	assert.Equal(t,
		`headers set example.com "{\"A\": {\"B\": 1}}"`,
		Normalize(`headers set example.com {"A": {"B": 1}}`))
}

func TestNormalizeOptions(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"short to long", "click 5 -force", "click 5 --force"},
		{"long lowercased", "click 5 --FORCE", "click 5 --force"},
		{"negative number kept", "scroll down -100", "scroll down -100"},
		{"decimal kept", "scroll down -1.5", "scroll down -1.5"},
		{"observe full", "observe full", "observe --full"},
		{"observe minimal", "observe MINIMAL", "observe --minimal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizePress(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"named key lowered", "press ENTER", "press enter"},
		{"modifier lowered", "press Ctrl", "press ctrl"},
		{"combo lowered", "press Ctrl+Shift+T", "press ctrl+shift+t"},
		{"split combo joined", "press ctrl + shift + t", "press ctrl+shift+t"},
		{"character case kept", "press A", "press A"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizeTypeReorder(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			"text before relation moves",
			`type email "x@y.com" inside "Login"`,
			`type email inside "Login" "x@y.com"`,
		},
		{
			"text stays before options",
			`type email "x@y.com" inside "Login" --enter`,
			`type email inside "Login" "x@y.com" --enter`,
		},
		{
			"canonical order untouched",
			`type email inside "Login" "x@y.com"`,
			`type email inside "Login" "x@y.com"`,
		},
		{
			"no relation untouched",
			`type email "x@y.com" --enter`,
			`type email "x@y.com" --enter`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizeDevice(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"multi word quoted", "device iphone 12 pro", `device "iphone 12 pro"`},
		{"quoted kept", `device "iPhone 12"`, `device "iPhone 12"`},
		{"reset bare", "device reset", "device reset"},
		{"bare list", "devices", "devices"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalizeCookies(t *testing.T) {
	assert.Equal(t, `cookies set session "abc123"`, Normalize(`cookies set session abc123`))
	assert.Equal(t, `cookies set session "abc123"`, Normalize(`cookies set session "abc123"`))
	assert.Equal(t, `cookies get session`, Normalize(`cookies get session`))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"navigate example.com",
		`click 'Add to Cart'`,
		`click css(div > .btn)`,
		`type email "x@y.com" inside "Login" --enter`,
		"press ctrl + shift + t",
		"observe full",
		"device iphone 12 pro",
		`headers set {"X-Test": "1"}`,
		"click 5 -Force # note",
		"goto example.com#frag",
		`cookies set session abc123`,
		"scroll down -100",
		"# comment only\n\nclick 5",
	}
	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once), "input %q", input)
	}
}
