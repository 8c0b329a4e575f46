package ocr

import "testing"

func TestDetectDocumentType(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"REPUBLIC OF UZBEKISTAN PASSPORT Nationality UZB", TypePassport},
		{"вид на жительство выдан", TypeResidencePermit},
		{"свидетельство о расторжении брака", TypeDivorceCertificate},
		{"Tashkent State University Diploma Bachelor", TypeDiploma},
		{"справка с места работы, работодатель ООО", TypeEmploymentProof},
		{"shopping list: milk, bread", ""},
	}
	for _, tc := range cases {
		if got := DetectDocumentType(tc.text); got != tc.want {
			t.Fatalf("DetectDocumentType(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestExtractDates(t *testing.T) {
	text := "Issued 12.03.2019 valid until 2029/03/12, born 5 March 1990"
	dates := ExtractDates(text)
	if len(dates) != 3 {
		t.Fatalf("expected 3 dates, got %d: %v", len(dates), dates)
	}
	if dates[0] != "12.03.2019" {
		t.Fatalf("unexpected first date: %q", dates[0])
	}
}

func TestExtractDatesDeduplicates(t *testing.T) {
	dates := ExtractDates("12.03.2019 and again 12.03.2019")
	if len(dates) != 1 {
		t.Fatalf("expected 1 date, got %v", dates)
	}
}

func TestExtractNames(t *testing.T) {
	names := ExtractNames("Surname: Eriksson Given name: Anna")
	if names.LastName != "Eriksson" {
		t.Fatalf("unexpected last name: %q", names.LastName)
	}
	if names.FirstName != "Anna" {
		t.Fatalf("unexpected first name: %q", names.FirstName)
	}
}

func TestExtractNamesCyrillic(t *testing.T) {
	names := ExtractNames("Фамилия: Каримова Имя: Дильноза")
	if names.LastName != "Каримова" {
		t.Fatalf("unexpected last name: %q", names.LastName)
	}
	if names.FirstName != "Дильноза" {
		t.Fatalf("unexpected first name: %q", names.FirstName)
	}
}

func TestExtractNamesSurnameDoesNotLeakIntoFirstName(t *testing.T) {
	names := ExtractNames("Surname: Eriksson")
	if names.FirstName != "" {
		t.Fatalf("expected empty first name, got %q", names.FirstName)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 4); got != "abcd" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("short text must pass through: %q", got)
	}
}
