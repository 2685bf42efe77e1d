// Package status 提供只读的 Gin 状态接口：查询历史 run、
// 修复循环迭代、阶段留痕与账本。
package status

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rbi/internal/modelmap"
	"rbi/internal/store/runstore"
	"rbi/internal/store/stagelog"
)

type Server struct {
	addr       string
	runs       *runstore.Store
	stages     *stagelog.Store
	registry   *modelmap.Registry
	ledgerPath string
	router     *gin.Engine
}

type Config struct {
	Addr       string
	Runs       *runstore.Store
	Stages     *stagelog.Store
	Registry   *modelmap.Registry
	LedgerPath string
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Runs == nil {
		return nil, errors.New("run store 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:       cfg.Addr,
		runs:       cfg.Runs,
		stages:     cfg.Stages,
		registry:   cfg.Registry,
		ledgerPath: cfg.LedgerPath,
		router:     router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/api/rbi/health", s.handleHealth)
	api := s.router.Group("/api/rbi")
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/iterations", s.handleRunIterations)
	api.GET("/runs/:id/stages", s.handleRunStages)
	api.GET("/stages", s.handleRecentStages)
	api.GET("/ledger", s.handleLedger)
	api.GET("/models", s.handleModels)
}

// Start 阻塞直到 ctx 取消或监听失败。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Router 暴露给测试用。
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runViews(runs)})
}

func (s *Server) handleRunDetail(c *gin.Context) {
	run, err := s.runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, runView(run))
}

func (s *Server) handleRunIterations(c *gin.Context) {
	its, err := s.runs.ListIterations(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]gin.H, 0, len(its))
	for _, it := range its {
		v := gin.H{
			"iteration":      it.Iteration,
			"classification": it.Classification,
			"timed_out":      it.TimedOut,
			"duration_ms":    it.DurationMS,
			"script_path":    it.ScriptPath,
			"result_path":    it.ResultPath,
			"created_at":     it.CreatedAt.Format(time.RFC3339),
		}
		if it.ReturnPct.Valid {
			v["return_pct"] = it.ReturnPct.Float64
		}
		if it.ReturnCode.Valid {
			v["return_code"] = it.ReturnCode.Int64
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"iterations": out})
}

func (s *Server) handleRunStages(c *gin.Context) {
	if s.stages == nil {
		c.JSON(http.StatusOK, gin.H{"stages": []gin.H{}})
		return
	}
	calls, err := s.stages.ByRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": stageViews(calls)})
}

func (s *Server) handleRecentStages(c *gin.Context) {
	if s.stages == nil {
		c.JSON(http.StatusOK, gin.H{"stages": []gin.H{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	calls, err := s.stages.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": stageViews(calls)})
}

// handleLedger 逐行透出账本数据行（不含注释头）。
func (s *Server) handleLedger(c *gin.Context) {
	f, err := os.Open(s.ledgerPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusOK, gin.H{"entries": []gin.H{}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	var entries []gin.H
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ",", 4)
		if len(parts) < 4 {
			continue
		}
		entries = append(entries, gin.H{
			"content_hash":  parts[0],
			"timestamp":     parts[1],
			"strategy_name": parts[2],
			"snippet":       parts[3],
		})
	}
	if err := scanner.Err(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleModels(c *gin.Context) {
	if s.registry == nil {
		c.JSON(http.StatusOK, gin.H{"stage_models": gin.H{}})
		return
	}
	snap := s.registry.Snapshot()
	models := gin.H{}
	for st, sel := range snap.Selectors {
		models[st.String()] = gin.H{"provider": sel.Provider, "model": sel.Model}
	}
	c.JSON(http.StatusOK, gin.H{
		"version":      snap.Version,
		"loaded_at":    snap.LoadedAt.Format(time.RFC3339),
		"stage_models": models,
	})
}

func runView(r runstore.Run) gin.H {
	v := gin.H{
		"id":             r.ID,
		"content_hash":   r.ContentHash,
		"strategy_name":  r.StrategyName,
		"source_snippet": r.SourceSnippet,
		"date_folder":    r.DateFolder,
		"status":         r.Status,
		"message":        r.Message,
		"created_at":     r.CreatedAt.Format(time.RFC3339),
		"updated_at":     r.UpdatedAt.Format(time.RFC3339),
	}
	if !r.CompletedAt.IsZero() {
		v["completed_at"] = r.CompletedAt.Format(time.RFC3339)
	}
	return v
}

func runViews(runs []runstore.Run) []gin.H {
	out := make([]gin.H, 0, len(runs))
	for _, r := range runs {
		out = append(out, runView(r))
	}
	return out
}

func stageViews(calls []stagelog.StageCallModel) []gin.H {
	out := make([]gin.H, 0, len(calls))
	for _, call := range calls {
		out = append(out, gin.H{
			"run_id":        call.RunID,
			"strategy_name": call.StrategyName,
			"stage":         call.Stage,
			"provider":      call.Provider,
			"model":         call.Model,
			"skipped":       call.Skipped,
			"error":         call.Error,
			"duration_ms":   call.DurationMS,
			"artifact_path": call.ArtifactPath,
			"created_at":    call.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
