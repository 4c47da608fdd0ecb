package project

import (
	stderrors "errors"

	comapeo "github.com/digidem/comapeo-cloud"
	"github.com/digidem/comapeo-cloud/errors"
)

// remapNotFound turns the engine's not-found into the API's ProjectNotFound.
// Anything else passes through untouched and surfaces as a server error.
func remapNotFound(err error) error {
	if stderrors.Is(err, comapeo.ErrProjectNotFound) {
		return errors.New("project not found", errors.ProjectNotFound())
	}
	return err
}
