package matching

import (
	"math"
	"testing"
	"time"

	"github.com/example/matchpoint/internal/repository"
)

var scoreNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func birthDate(year int) *time.Time {
	t := time.Date(year, 3, 15, 0, 0, 0, 0, time.UTC)
	return &t
}

func verifiedCandidate() Party {
	return Party{
		Profile: &repository.Profile{
			VerifiedBirthDate:        birthDate(1996),
			VerifiedResidenceCountry: "Uzbekistan",
			CurrentCity:              "Tashkent",
			Ethnicity:                "uzbek",
			ReligiousPractice:        "practicing",
			VerifiedEducationLevel:   "higher",
			VerifiedMaritalStatus:    "single",
			HeightCm:                 170,
			Smoking:                  "never",
			Alcohol:                  "never",
			Diet:                     "halal",
		},
		User: &repository.User{VerificationStatus: "verified"},
	}
}

func openViewer() Party {
	return Party{
		Profile: &repository.Profile{VerifiedBirthDate: birthDate(1994)},
		User:    &repository.User{VerificationStatus: "verified"},
	}
}

func factors(b Breakdown) []Factor {
	return []Factor{
		b.Age, b.Location, b.Ethnicity, b.Religion, b.Education,
		b.MaritalStatus, b.Height, b.Lifestyle, b.Verification, b.MutualInterest,
	}
}

func breakdownSum(b Breakdown) float64 {
	var sum float64
	for _, f := range factors(b) {
		sum += f.Score
	}
	return sum
}

func TestScoreEmptyPreferencesIsFull(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{MinAge: 18, MaxAge: 99}

	b := Score(viewer, verifiedCandidate(), scoreNow)
	if b.Total != 100 {
		t.Fatalf("expected full score with open preferences, got %v: %+v", b.Total, b)
	}
	if !b.Mutual {
		t.Fatal("a candidate without preferences must read as mutual")
	}
}

func TestScoreBreakdownSumsToTotal(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{
		MinAge:                      25,
		MaxAge:                      35,
		PreferredCountries:          repository.StringList{"Uzbekistan"},
		PreferredEthnicities:        repository.StringList{"kazakh"},
		PreferredReligiousPractices: repository.StringList{"practicing"},
		PreferredSmoking:            repository.StringList{"never"},
		PreferredAlcohol:            repository.StringList{"socially"},
		MinHeightCm:                 160,
		MaxHeightCm:                 190,
	}

	b := Score(viewer, verifiedCandidate(), scoreNow)
	if math.Abs(breakdownSum(b)-b.Total) > 1e-9 {
		t.Fatalf("breakdown does not sum to total: %+v", b)
	}
	for _, f := range factors(b) {
		if f.Score < 0 || f.Score > f.MaxScore {
			t.Fatalf("factor score %v outside [0,%v]: %+v", f.Score, f.MaxScore, f)
		}
		if f.Detail == "" {
			t.Fatalf("factor without detail: %+v", f)
		}
	}
	if b.Ethnicity.Match || b.Ethnicity.Score != 0 {
		t.Fatalf("expected ethnicity miss, got %+v", b.Ethnicity)
	}
}

func TestScoreAbsentValueFailsNonEmptyList(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{
		MinAge:               18,
		MaxAge:               99,
		PreferredEthnicities: repository.StringList{"uzbek"},
	}
	candidate := verifiedCandidate()
	candidate.Profile.Ethnicity = ""

	b := Score(viewer, candidate, scoreNow)
	if b.Ethnicity.Score != 0 {
		t.Fatalf("a non-empty list must not match an absent value, got %v", b.Ethnicity.Score)
	}
}

func TestScoreListMatchIgnoresCase(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{
		MinAge:               18,
		MaxAge:               99,
		PreferredEthnicities: repository.StringList{"Uzbek"},
	}
	candidate := verifiedCandidate()
	candidate.Profile.Ethnicity = "uzbek"

	b := Score(viewer, candidate, scoreNow)
	if b.Ethnicity.Score != weightEthnicity {
		t.Fatalf("list matching must ignore case, got %v", b.Ethnicity.Score)
	}
}

func TestScoreCountryFallsBackToNationality(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{
		MinAge:             18,
		MaxAge:             99,
		PreferredCountries: repository.StringList{"Uzbekistan"},
	}

	// Passport-verified users carry a nationality but no residence country.
	candidate := verifiedCandidate()
	candidate.Profile.VerifiedResidenceCountry = ""
	candidate.Profile.VerifiedNationality = "Uzbekistan"

	b := Score(viewer, candidate, scoreNow)
	if b.Location.Score != weightCountry+weightCity {
		t.Fatalf("nationality must satisfy a country preference, got %+v", b.Location)
	}
}

func TestScoreAgeNeedsVerifiedBirthDate(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{MinAge: 18, MaxAge: 99}
	candidate := verifiedCandidate()
	candidate.Profile.VerifiedBirthDate = nil

	b := Score(viewer, candidate, scoreNow)
	if b.Age.Score != 0 {
		t.Fatalf("age must require a verified birth date, got %v", b.Age.Score)
	}
}

func TestScoreAgeBounds(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{MinAge: 25, MaxAge: 30}

	young := verifiedCandidate()
	young.Profile.VerifiedBirthDate = birthDate(2004)
	if b := Score(viewer, young, scoreNow); b.Age.Score != 0 {
		t.Fatalf("22-year-old must miss a 25-30 range, got %v", b.Age.Score)
	}

	inRange := verifiedCandidate()
	inRange.Profile.VerifiedBirthDate = birthDate(1998)
	if b := Score(viewer, inRange, scoreNow); b.Age.Score != weightAge {
		t.Fatalf("28-year-old must hit a 25-30 range, got %v", b.Age.Score)
	}
}

func TestScoreLifestylePartialCredit(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{
		MinAge:           18,
		MaxAge:           99,
		PreferredSmoking: repository.StringList{"never"},
		PreferredAlcohol: repository.StringList{"never"},
		PreferredDiet:    repository.StringList{"vegetarian"},
	}

	b := Score(viewer, verifiedCandidate(), scoreNow)
	want := 2.0 / 3.0 * weightLifestyle
	if math.Abs(b.Lifestyle.Score-want) > 1e-9 {
		t.Fatalf("expected partial lifestyle credit %v, got %v", want, b.Lifestyle.Score)
	}
	if b.Lifestyle.Match {
		t.Fatal("a partial lifestyle match must not report a full match")
	}
}

func TestScoreLifestyleCountsOnlyStatedPreferences(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{
		MinAge:           18,
		MaxAge:           99,
		PreferredSmoking: repository.StringList{"never"},
	}
	candidate := verifiedCandidate()
	candidate.Profile.Smoking = "daily"

	// The only stated habit fails; the unset alcohol and diet lists must
	// not pad the score.
	b := Score(viewer, candidate, scoreNow)
	if b.Lifestyle.Score != 0 {
		t.Fatalf("one stated and failed habit must score 0, got %v", b.Lifestyle.Score)
	}

	open := openViewer()
	open.Preference = &repository.SearchPreference{MinAge: 18, MaxAge: 99}
	if b := Score(open, verifiedCandidate(), scoreNow); b.Lifestyle.Score != weightLifestyle {
		t.Fatalf("no stated habits must grant the full weight, got %v", b.Lifestyle.Score)
	}
}

func TestScoreHeight(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{MinAge: 18, MaxAge: 99, MinHeightCm: 175}

	b := Score(viewer, verifiedCandidate(), scoreNow)
	if b.Height.Score != 0 {
		t.Fatalf("170cm must miss a 175cm minimum, got %v", b.Height.Score)
	}

	unknown := verifiedCandidate()
	unknown.Profile.HeightCm = 0
	if b := Score(viewer, unknown, scoreNow); b.Height.Score != weightHeight {
		t.Fatalf("unknown height must not fail a bound, got %v", b.Height.Score)
	}
}

func TestScoreUnverifiedCandidate(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{MinAge: 18, MaxAge: 99}
	candidate := verifiedCandidate()
	candidate.User.VerificationStatus = "unverified"

	b := Score(viewer, candidate, scoreNow)
	if b.Verification.Score != 0 {
		t.Fatalf("unverified candidate must not earn verification points, got %v", b.Verification.Score)
	}
}

func TestScoreMutualInterestIsAsymmetric(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{MinAge: 18, MaxAge: 99}

	candidate := verifiedCandidate()
	candidate.Preference = &repository.SearchPreference{MinAge: 18, MaxAge: 25}

	// Viewer is 32, outside the candidate's 18-25 range.
	b := Score(viewer, candidate, scoreNow)
	if b.Mutual || b.MutualInterest.Score != 0 {
		t.Fatalf("candidate's preferences reject the viewer, got %+v", b.MutualInterest)
	}
	if b.Total != 100-weightMutual {
		t.Fatalf("only the mutual component may be lost: %+v", b)
	}

	candidate.Preference.MaxAge = 40
	b = Score(viewer, candidate, scoreNow)
	if !b.Mutual || b.MutualInterest.Score != weightMutual {
		t.Fatalf("expected mutual once the candidate accepts the viewer, got %+v", b.MutualInterest)
	}
}

func TestScoreMutualSkipsUnverifiedViewerAge(t *testing.T) {
	viewer := openViewer()
	viewer.Profile.VerifiedBirthDate = nil
	viewer.Preference = &repository.SearchPreference{MinAge: 18, MaxAge: 99}

	candidate := verifiedCandidate()
	candidate.Preference = &repository.SearchPreference{MinAge: 25, MaxAge: 35}

	// An unknown viewer age skips the age criterion instead of failing it.
	b := Score(viewer, candidate, scoreNow)
	if !b.Mutual {
		t.Fatalf("unverified viewer age must not disqualify the mutual check: %+v", b.MutualInterest)
	}
}

func TestScoreNilPreferenceDefaultsOpen(t *testing.T) {
	b := Score(openViewer(), verifiedCandidate(), scoreNow)
	if b.Total != 100 {
		t.Fatalf("nil preference must score as open, got %v: %+v", b.Total, b)
	}
}

func TestScoreDeterministic(t *testing.T) {
	viewer := openViewer()
	viewer.Preference = &repository.SearchPreference{
		MinAge:             20,
		MaxAge:             40,
		PreferredCountries: repository.StringList{"Uzbekistan", "Kazakhstan"},
	}
	candidate := verifiedCandidate()

	first := Score(viewer, candidate, scoreNow)
	for i := 0; i < 10; i++ {
		if got := Score(viewer, candidate, scoreNow); got != first {
			t.Fatalf("score is not deterministic: %+v vs %+v", got, first)
		}
	}
}
