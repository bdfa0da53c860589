package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attacklens/attacklens/internal/artifact"
	"github.com/attacklens/attacklens/internal/graph"
	"github.com/attacklens/attacklens/internal/reconcile"
)

type matrixTechnique struct {
	Key          string `json:"key"`
	StixID       string `json:"stix_id,omitempty"`
	Name         string `json:"name"`
	FindingCount int    `json:"finding_count"`
}

type matrixTactic struct {
	Name       string            `json:"name"`
	Techniques []matrixTechnique `json:"techniques"`
}

type matrixResponse struct {
	Application string         `json:"application"`
	Shape       string         `json:"shape"`
	Dialect     string         `json:"dialect,omitempty"`
	Tactics     []matrixTactic `json:"tactics"`
}

// writeLoadError maps loader failures onto the wire: data unavailability is
// a 404 with a structured body the viewer renders inline, never a 500.
func (s *Server) writeLoadError(c *gin.Context, err error) {
	var unavailable *artifact.DataUnavailableError
	if errors.As(err, &unavailable) {
		shapes := make([]string, len(unavailable.Attempted))
		for i, sh := range unavailable.Attempted {
			shapes[i] = string(sh)
		}
		c.JSON(http.StatusNotFound, gin.H{
			"error":            "analysis data not available",
			"application":      unavailable.Application,
			"shapes_attempted": shapes,
		})
		return
	}
	if errors.Is(err, artifact.ErrNotFound) || errors.Is(err, artifact.ErrShapeMismatch) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.log.LogError(c.Request.Context(), err, "artifact.load")
	c.JSON(http.StatusBadGateway, gin.H{"error": "artifact host unreachable"})
}

func (s *Server) handleAttackPaths(c *gin.Context) {
	ds, err := s.loader.Load(c.Request.Context(), c.Param("app"))
	if err != nil {
		s.writeLoadError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

func (s *Server) handleMatrix(c *gin.Context) {
	app := c.Param("app")
	ds, err := s.loader.Load(c.Request.Context(), app)
	if err != nil {
		s.writeLoadError(c, err)
		return
	}
	ix := reconcile.BuildIndexes(ds)
	c.JSON(http.StatusOK, buildMatrix(ds, ix))
}

// buildMatrix emits every kill-chain stage, empty or not, so the viewer can
// render a fixed twelve-column matrix; tactic names outside the taxonomy
// follow in first-seen order.
func buildMatrix(ds *artifact.Dataset, ix *reconcile.Indexes) matrixResponse {
	resp := matrixResponse{
		Application: ds.Application,
		Shape:       string(ds.Shape),
		Dialect:     string(ds.Dialect),
	}

	emitted := make(map[string]struct{})
	emit := func(tactic string) {
		if _, done := emitted[tactic]; done {
			return
		}
		emitted[tactic] = struct{}{}

		mt := matrixTactic{Name: tactic, Techniques: []matrixTechnique{}}
		for _, key := range ix.TechniqueOrder[tactic] {
			tech := ix.Techniques[tactic][key]
			mt.Techniques = append(mt.Techniques, matrixTechnique{
				Key:          key,
				StixID:       tech.StixID,
				Name:         tech.Name,
				FindingCount: len(ix.FindingsFor(tactic, key)),
			})
		}
		resp.Tactics = append(resp.Tactics, mt)
	}

	for _, stage := range artifact.TacticStages() {
		emit(stage.Name)
	}
	for _, tactic := range ix.TacticOrder {
		emit(tactic)
	}
	return resp
}

func (s *Server) handleTechniqueFindings(c *gin.Context) {
	ds, err := s.loader.Load(c.Request.Context(), c.Param("app"))
	if err != nil {
		s.writeLoadError(c, err)
		return
	}
	ix := reconcile.BuildIndexes(ds)

	tactic, key := c.Param("tactic"), c.Param("key")
	findings := ix.FindingsFor(tactic, key)
	if findings == nil {
		findings = []artifact.Finding{}
	}
	c.JSON(http.StatusOK, gin.H{
		"tactic":   tactic,
		"key":      key,
		"findings": findings,
	})
}

type resolutionResponse struct {
	Available    bool                        `json:"available"`
	Technique    *artifact.Technique         `json:"technique,omitempty"`
	Rationale    string                      `json:"rationale,omitempty"`
	Method       *artifact.AdversarialMethod `json:"method,omitempty"`
	MatchedSteps []artifact.AttackFlowStep   `json:"matched_steps,omitempty"`
	AllSteps     []artifact.AttackFlowStep   `json:"all_steps,omitempty"`
}

func (s *Server) handleResolution(c *gin.Context) {
	ds, err := s.loader.Load(c.Request.Context(), c.Param("app"))
	if err != nil {
		s.writeLoadError(c, err)
		return
	}

	tactic, key := c.Param("tactic"), c.Param("key")
	scenario := c.Query("scenario")

	finding := findByScenario(ds, scenario)
	if finding == nil {
		// A resolution miss is "no information available", not an error.
		s.tel.RecordResolution(ds.Application, false)
		c.JSON(http.StatusOK, resolutionResponse{Available: false})
		return
	}

	res := reconcile.Resolve(finding, reconcile.Target{
		Tactic: tactic,
		Key:    key,
		Name:   c.Query("name"),
	})
	s.tel.RecordResolution(ds.Application, res != nil)
	if res == nil {
		c.JSON(http.StatusOK, resolutionResponse{Available: false})
		return
	}

	c.JSON(http.StatusOK, resolutionResponse{
		Available:    true,
		Technique:    &res.Technique,
		Rationale:    res.Rationale,
		Method:       res.Method,
		MatchedSteps: res.MatchedSteps,
		AllSteps:     res.AllSteps,
	})
}

func (s *Server) handleFindingGraph(c *gin.Context) {
	ds, err := s.loader.Load(c.Request.Context(), c.Param("app"))
	if err != nil {
		s.writeLoadError(c, err)
		return
	}

	finding := findByScenario(ds, c.Param("scenario"))
	if finding == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
		return
	}

	c.JSON(http.StatusOK, graph.ChainLayout(finding.FlowSteps()))
}

func (s *Server) handleBreakdown(c *gin.Context) {
	b, err := s.collaborators.LoadBreakdown(c.Request.Context(), c.Param("app"))
	if err != nil {
		s.writeLoadError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleDiscovery(c *gin.Context) {
	entries, err := s.collaborators.LoadDiscoveryVectors(c.Request.Context(), c.Param("app"))
	if err != nil {
		s.writeLoadError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func findByScenario(ds *artifact.Dataset, scenario string) *artifact.Finding {
	for i := range ds.AttackPaths {
		if ds.AttackPaths[i].ScenarioName == scenario {
			return &ds.AttackPaths[i]
		}
	}
	return nil
}
