package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mahatab-code/settlement-automation/internal/app/model"
	"github.com/mahatab-code/settlement-automation/internal/app/repository"
)

// RunController serves the persisted run summaries to operators.
type RunController struct {
	runRepo repository.RunRepository
}

// NewRunController creates a run controller
func NewRunController(runRepo repository.RunRepository) *RunController {
	return &RunController{runRepo: runRepo}
}

// GetLatestRun returns the most recent run record of a kind
// (?kind=submit|import, default submit).
func (c *RunController) GetLatestRun(ctx *gin.Context) {
	kind := model.RunKind(ctx.DefaultQuery("kind", string(model.RunKindSubmit)))
	if kind != model.RunKindSubmit && kind != model.RunKindImport {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "kind must be submit or import"})
		return
	}

	run, err := c.runRepo.LatestRun(kind)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run record"})
		return
	}
	if run == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "no runs recorded yet"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"data": run})
}
