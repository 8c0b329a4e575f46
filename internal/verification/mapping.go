package verification

import (
	"time"

	"github.com/example/matchpoint/internal/ocr"
	"github.com/example/matchpoint/internal/repository"
)

// profileAppliers maps a document type to the profile fields its approval
// vouches for. Document types without an entry verify nothing on the
// profile. Automated and manual approvals share this table so the two paths
// cannot drift.
var profileAppliers = map[string]func(p *repository.Profile, v *repository.Verification){
	ocr.TypePassport:           applyPassport,
	ocr.TypeResidencePermit:    applyResidencePermit,
	ocr.TypeDivorceCertificate: applyDivorceCertificate,
	ocr.TypeDiploma:            applyDiploma,
}

// applyPassport copies identity fields. Only the last-name initial is kept;
// full surnames are not exposed on profiles.
func applyPassport(p *repository.Profile, v *repository.Verification) {
	if first := stringField(v.ExtractedData, "first_name"); first != "" {
		p.VerifiedFirstName = first
	}
	if last := []rune(stringField(v.ExtractedData, "last_name")); len(last) > 0 {
		p.VerifiedLastInitial = string(last[0])
	}
	if birth := dateField(v.ExtractedData, "birth_date"); birth != nil {
		p.VerifiedBirthDate = birth
	}
	if nationality := stringField(v.ExtractedData, "nationality_name"); nationality != "" {
		p.VerifiedNationality = nationality
	} else if code := stringField(v.ExtractedData, "nationality"); code != "" {
		p.VerifiedNationality = code
	}
}

func applyResidencePermit(p *repository.Profile, v *repository.Verification) {
	if v.DocumentCountry != "" {
		p.VerifiedResidenceCountry = v.DocumentCountry
	}
	if status := stringField(v.ExtractedData, "residence_status"); status != "" {
		p.VerifiedResidenceStatus = status
	} else {
		p.VerifiedResidenceStatus = "resident"
	}
}

func applyDivorceCertificate(p *repository.Profile, v *repository.Verification) {
	p.VerifiedMaritalStatus = "divorced"
}

func applyDiploma(p *repository.Profile, v *repository.Verification) {
	if level := stringField(v.ExtractedData, "education_level"); level != "" {
		p.VerifiedEducationLevel = level
	} else {
		p.VerifiedEducationLevel = "higher"
	}
}

func stringField(data repository.JSONMap, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}

func dateField(data repository.JSONMap, key string) *time.Time {
	raw := stringField(data, key)
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}
