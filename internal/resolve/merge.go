package resolve

import (
	"time"

	"github.com/sells-group/project-registry/internal/model"
)

// Merge fills fields that are empty on existing with non-empty values from
// rec. Populated fields are never overwritten. It returns the JSON names of
// the fields it filled.
func Merge(existing *model.ProjectFields, rec model.ProjectFields) []string {
	var changed []string
	fillString := func(dst *string, src, name string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = append(changed, name)
		}
	}
	fillTime := func(dst **time.Time, src *time.Time, name string) {
		if *dst == nil && src != nil {
			t := *src
			*dst = &t
			changed = append(changed, name)
		}
	}

	fillString(&existing.ProjectName, rec.ProjectName, "project_name")
	fillString(&existing.ProjectNameLocalized, rec.ProjectNameLocalized, "project_name_localized")
	if existing.Status == "" && rec.Status != "" {
		existing.Status = rec.Status
		changed = append(changed, "status")
	}
	fillString(&existing.Owner, rec.Owner, "owner")
	fillString(&existing.MainContractor, rec.MainContractor, "main_contractor")
	fillString(&existing.Consultant, rec.Consultant, "consultant")
	fillString(&existing.Region, rec.Region, "region")
	fillString(&existing.City, rec.City, "city")
	fillString(&existing.Category, rec.Category, "category")
	fillString(&existing.Description, rec.Description, "description")
	fillString(&existing.ProjectValue, rec.ProjectValue, "project_value")
	fillString(&existing.ProjectSize, rec.ProjectSize, "project_size")
	fillTime(&existing.StartDate, rec.StartDate, "start_date")
	fillTime(&existing.AnnouncementDate, rec.AnnouncementDate, "announcement_date")
	return changed
}
