package workflow

import (
	"issue-map/internal/apiclient"
	"issue-map/internal/model"
)

// Draft is the report being filled in while the form is open. It is never persisted.
type Draft struct {
	Category    string
	Title       string
	Description string
	Coordinate  *model.Coordinate
	Image       *model.Image
}

func (d Draft) validate() *ValidationError {
	verr := &ValidationError{}
	switch {
	case d.Category == "":
		verr.Missing = append(verr.Missing, "category")
	case !model.Category(d.Category).Valid():
		verr.Invalid = append(verr.Invalid, "category")
	}
	switch {
	case d.Coordinate == nil:
		verr.Missing = append(verr.Missing, "coordinate")
	case d.Coordinate.Validate() != nil:
		verr.Invalid = append(verr.Invalid, "coordinate")
	}
	if d.Image == nil || len(d.Image.Data) == 0 {
		verr.Missing = append(verr.Missing, "image")
	}
	if len(verr.Missing) == 0 && len(verr.Invalid) == 0 {
		return nil
	}
	return verr
}

func (d Draft) submission() apiclient.Submission {
	return apiclient.Submission{
		Category:    model.Category(d.Category),
		Title:       d.Title,
		Description: d.Description,
		Coordinate:  *d.Coordinate,
		Image:       *d.Image,
	}
}

func (d Draft) clone() Draft {
	out := d
	if d.Coordinate != nil {
		c := *d.Coordinate
		out.Coordinate = &c
	}
	if d.Image != nil {
		img := model.Image{Filename: d.Image.Filename, Data: append([]byte(nil), d.Image.Data...)}
		out.Image = &img
	}
	return out
}
