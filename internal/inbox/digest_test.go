package inbox

import (
	"reflect"
	"testing"
)

const digestHTML = `
<html><body>
<table>
  <tbody>
    <tr><td>Din søgning: København, 2 værelser</td></tr>
    <tr><td>
      <a href="https://abc123.awstrack.me/L0/https:%2F%2Fwww.boligportal.dk%2Flejebolig%2Fkoebenhavn%2F1234567%3Futm_source%3Demail/1/0100019/xyz">Lejlighed 1</a>
      <a href="https://www.google.com/url?q=https://www.boligportal.dk/lejebolig/valby/7654321?ref=mail&amp;source=gmail">Lejlighed 2</a>
      <a href="https://www.boligportal.dk/lejebolig/koebenhavn/1234567?utm_campaign=digest">Lejlighed 1 igen</a>
      <a href="https://www.example.com/not-a-listing">Annonce</a>
    </td></tr>
    <tr><td><a href="https://www.boligportal.dk/find?alle">Se alle resultater</a></td></tr>
  </tbody>
</table>
</body></html>`

func TestExtractListingLinks(t *testing.T) {
	links, err := ExtractListingLinks(digestHTML)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"https://www.boligportal.dk/lejebolig/koebenhavn/1234567",
		"https://www.boligportal.dk/lejebolig/valby/7654321",
	}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("got %v, want %v", links, want)
	}
}

func TestExtractListingLinksSkipsFooterRow(t *testing.T) {
	links, err := ExtractListingLinks(digestHTML)
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range links {
		if l == "https://www.boligportal.dk/find" {
			t.Error("footer row anchor leaked into listing links")
		}
	}
}

func TestExtractListingLinksEmpty(t *testing.T) {
	links, err := ExtractListingLinks("<html><body><p>no tables here</p></body></html>")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 0 {
		t.Errorf("got %v, want none", links)
	}
}

func TestDecodeRedirect(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
	}{
		{
			name: "awstrack wrapper",
			href: "https://abc.awstrack.me/L0/https:%2F%2Fwww.boligportal.dk%2Flejebolig%2F42/1/010001/abc",
			want: "https://www.boligportal.dk/lejebolig/42/1/010001/abc",
		},
		{
			name: "google redirect",
			href: "https://www.google.com/url?q=https://www.boligportal.dk/lejebolig/42",
			want: "https://www.boligportal.dk/lejebolig/42",
		},
		{
			name: "plain link untouched",
			href: "https://www.boligportal.dk/lejebolig/42",
			want: "https://www.boligportal.dk/lejebolig/42",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeRedirect(tt.href); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
