package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/attacklens/attacklens/internal/artifact"
	"github.com/attacklens/attacklens/internal/graph"
	"github.com/attacklens/attacklens/internal/navigation"
	"github.com/attacklens/attacklens/internal/reconcile"
)

type navigateRequest struct {
	Application string `json:"application" binding:"required"`
}

// sessionEvent is one drill-down interaction. Type selects the transition;
// the remaining fields carry whatever that transition needs.
type sessionEvent struct {
	Type         string                   `json:"type" binding:"required"`
	Tactic       string                   `json:"tactic,omitempty"`
	TechniqueKey string                   `json:"technique_key,omitempty"`
	Scenario     string                   `json:"scenario,omitempty"`
	Step         *artifact.AttackFlowStep `json:"step,omitempty"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "application is required"})
		return
	}

	session := s.sessions.Create()
	if err := session.Navigate(c.Request.Context(), req.Application); err != nil {
		// The session still exists; its view reports the unavailable state.
		s.log.Warnw("Session navigation failed",
			"session_id", session.ID,
			"application", req.Application,
			"error", err.Error(),
		)
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.ID,
		"view":       s.viewPayload(session),
	})
}

func (s *Server) handleSessionView(c *gin.Context) {
	session, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, s.viewPayload(session))
}

func (s *Server) handleSessionNavigate(c *gin.Context) {
	session, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "application is required"})
		return
	}

	if err := session.Navigate(c.Request.Context(), req.Application); err != nil {
		s.log.Warnw("Session navigation failed",
			"session_id", session.ID,
			"application", req.Application,
			"error", err.Error(),
		)
	}
	c.JSON(http.StatusOK, s.viewPayload(session))
}

func (s *Server) handleSessionEvent(c *gin.Context) {
	session, ok := s.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var event sessionEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event type is required"})
		return
	}

	var err error
	switch event.Type {
	case "select_technique":
		err = session.SelectTechnique(event.Tactic, event.TechniqueKey)
	case "select_finding":
		err = session.SelectFinding(event.Scenario)
	case "open_finding":
		err = session.OpenFinding()
	case "view_in_context":
		err = session.ViewInContext()
	case "select_step_node":
		if event.Step == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "select_step_node requires a step"})
			return
		}
		var resolved bool
		resolved, err = session.SelectStepNode(*event.Step)
		if err == nil && !resolved {
			// Unresolvable node: stay put, report the miss.
			c.JSON(http.StatusOK, gin.H{
				"resolved": false,
				"view":     s.viewPayload(session),
			})
			return
		}
	case "back":
		err = session.Back()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type: " + event.Type})
		return
	}

	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.viewPayload(session))
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	s.sessions.Delete(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// sessionViewResponse is the session view plus the data slice the current
// state renders from.
type sessionViewResponse struct {
	navigation.View
	Matrix     *matrixResponse     `json:"matrix,omitempty"`
	Findings   []artifact.Finding  `json:"findings,omitempty"`
	Resolution *resolutionResponse `json:"resolution,omitempty"`
	Finding    *artifact.Finding   `json:"finding,omitempty"`
	Graph      *graph.Layout       `json:"graph,omitempty"`
}

func (s *Server) viewPayload(session *navigation.Session) sessionViewResponse {
	view := session.Snapshot()
	resp := sessionViewResponse{View: view}

	ds, ix := session.Data()
	if ds == nil || ix == nil {
		return resp
	}

	switch view.State {
	case navigation.StateMatrix:
		m := buildMatrix(ds, ix)
		resp.Matrix = &m

	case navigation.StateTechnique:
		sel := view.Selection
		resp.Findings = ix.FindingsFor(sel.Tactic, sel.TechniqueKey)
		if finding := findByScenario(ds, sel.Scenario); finding != nil {
			if res := reconcile.Resolve(finding, reconcile.Target{
				Tactic: sel.Tactic,
				Key:    sel.TechniqueKey,
			}); res != nil {
				resp.Resolution = &resolutionResponse{
					Available:    true,
					Technique:    &res.Technique,
					Rationale:    res.Rationale,
					Method:       res.Method,
					MatchedSteps: res.MatchedSteps,
					AllSteps:     res.AllSteps,
				}
			} else {
				resp.Resolution = &resolutionResponse{Available: false}
			}
		}

	case navigation.StateFinding:
		sel := view.Selection
		if finding := findByScenario(ds, sel.Scenario); finding != nil {
			specialized := reconcile.Specialize(finding, reconcile.Target{
				Tactic: sel.Tactic,
				Key:    sel.TechniqueKey,
			})
			if specialized == nil {
				specialized = finding
			}
			resp.Finding = specialized
		}

	case navigation.StatePathVisualization:
		if finding := findByScenario(ds, view.Selection.Scenario); finding != nil {
			layout := graph.ChainLayout(finding.FlowSteps())
			resp.Graph = &layout
		}
	}

	return resp
}
