package main

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendance/internal/attendance"
	"attendance/internal/auth"
	"attendance/internal/config"
	"attendance/internal/httpmiddleware"
	"attendance/internal/queue"
	"attendance/internal/report"
	"attendance/internal/roster"
	"attendance/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.Migrate(context.Background(), db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "attendance:clock-events")
	}

	loc := cfg.Location()
	opts := attendance.Options{
		GracePeriod:       time.Duration(cfg.GraceMinutes) * time.Minute,
		LatenessTolerance: time.Duration(cfg.LatenessMinutes) * time.Minute,
		Location:          loc,
	}

	rosterRepo := roster.NewRepository(db.Client)
	attRepo := attendance.NewRepository(db.Client)
	svc := attendance.NewService(attRepo, rosterRepo, opts, cfg.DedupWindow)
	sweep := attendance.NewSweep(attRepo, rosterRepo, opts)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/devices/register", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := attRepo.UpsertDevice(c.Request.Context(), req.DeviceID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.DeviceID, auth.RoleDevice, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		_ = attRepo.SaveRefreshToken(c.Request.Context(), req.DeviceID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	r.POST("/v1/auth/admin", func(c *gin.Context) {
		var req struct {
			APIKey string `json:"api_key" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if cfg.AdminAPIKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(cfg.AdminAPIKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		tokens, err := auth.Issue("admin", auth.RoleAdmin, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token": tokens.AccessToken,
			"expires_at":   tokens.AccessExp.Unix(),
		})
	})

	// Device-facing: the biometric sync client posts punches here. Events go
	// through the queue so a slow database never blocks the device.
	deviceGroup := r.Group("/v1", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleDevice, auth.RoleAdmin))

	deviceGroup.POST("/clock-events", func(c *gin.Context) {
		var req struct {
			EmployeeID string     `json:"employee_id" binding:"required"`
			DeviceID   string     `json:"device_id" binding:"required"`
			Kind       string     `json:"kind" binding:"required,oneof=in out"`
			At         *time.Time `json:"at"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		claimsAny, _ := c.Get("claims")
		claims, _ := claimsAny.(auth.Claims)
		if claims.Role == auth.RoleDevice && claims.Subject != req.DeviceID {
			c.JSON(http.StatusForbidden, gin.H{"error": "device mismatch"})
			return
		}

		ev := queue.ClockEvent{
			EmployeeID: req.EmployeeID,
			DeviceID:   req.DeviceID,
			Kind:       req.Kind,
			At:         time.Now().In(loc),
		}
		if req.At != nil {
			ev.At = req.At.In(loc)
		}
		if err := q.Publish(c.Request.Context(), ev); err != nil {
			log.Printf("queue publish failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event not accepted"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"employee_id": ev.EmployeeID, "kind": ev.Kind, "at": ev.At})
	})

	deviceGroup.GET("/attendance", func(c *gin.Context) {
		employeeID := c.Query("employee_id")
		if employeeID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "employee_id required"})
			return
		}
		date, err := parseDate(c.DefaultQuery("date", time.Now().In(loc).Format(roster.DateLayout)), loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		decision, rec, err := svc.ResolveDay(c.Request.Context(), employeeID, date)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		resp := gin.H{
			"employee_id": employeeID,
			"date":        date.Format(roster.DateLayout),
			"state":       decision.State,
		}
		if rec != nil {
			resp["record"] = rec
			resp["worked_hours"] = decision.WorkedHours
		}
		if decision.Assignment != nil {
			resp["shift"] = decision.Assignment.Shift
		}
		c.JSON(http.StatusOK, resp)
	})

	deviceGroup.GET("/attendance/day/:date", func(c *gin.Context) {
		date, err := parseDate(c.Param("date"), loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		records, err := attRepo.ListForDate(c.Request.Context(), date)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"date": date.Format(roster.DateLayout), "records": records})
	})

	admin := r.Group("/v1/admin", auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin))

	admin.POST("/employees", func(c *gin.Context) {
		var req struct {
			EmployeeID string  `json:"employee_id" binding:"required"`
			Name       *string `json:"name"`
			Department *string `json:"department"`
			Position   *string `json:"position"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		emp, err := rosterRepo.UpsertEmployee(c.Request.Context(), roster.Employee{
			EmployeeID: req.EmployeeID,
			Name:       req.Name,
			Department: req.Department,
			Position:   req.Position,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, emp)
	})

	admin.GET("/employees", func(c *gin.Context) {
		activeOnly := c.Query("all") == ""
		employees, err := rosterRepo.ListEmployees(c.Request.Context(), activeOnly)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"employees": employees})
	})

	admin.DELETE("/employees/:employee_id", func(c *gin.Context) {
		if err := rosterRepo.DeactivateEmployee(c.Request.Context(), c.Param("employee_id")); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	admin.POST("/schedules", func(c *gin.Context) {
		var req struct {
			EmployeeID string   `json:"employee_id" binding:"required"`
			ShiftName  string   `json:"shift_name" binding:"required"`
			StartTime  string   `json:"start_time" binding:"required"`
			EndTime    string   `json:"end_time" binding:"required"`
			Weekdays   []string `json:"weekdays"`
			Dates      []string `json:"dates"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		assignment, err := rosterRepo.CreateAssignment(c.Request.Context(), req.EmployeeID,
			roster.Shift{Name: req.ShiftName, Start: req.StartTime, End: req.EndTime},
			req.Weekdays, req.Dates)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, assignment)
	})

	admin.GET("/schedules/:employee_id", func(c *gin.Context) {
		assignments, err := rosterRepo.ActiveSchedulesForEmployee(c.Request.Context(), c.Param("employee_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"schedules": assignments})
	})

	admin.DELETE("/schedules/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "numeric id required"})
			return
		}
		if err := rosterRepo.DeactivateAssignment(c.Request.Context(), id); err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	admin.POST("/overtime", func(c *gin.Context) {
		var req struct {
			EmployeeID string  `json:"employee_id" binding:"required"`
			Date       string  `json:"date" binding:"required"`
			Hours      float64 `json:"hours" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := parseDate(req.Date, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		rec, err := svc.AssignOvertime(c.Request.Context(), req.EmployeeID, date, req.Hours)
		if err != nil {
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rec)
	})

	admin.POST("/sweep", func(c *gin.Context) {
		var req struct {
			Date string `json:"date"`
		}
		_ = c.ShouldBindJSON(&req)
		now := time.Now().In(loc)
		date := now
		if req.Date != "" {
			parsed, err := parseDate(req.Date, loc)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
			date = parsed
		}
		summary, err := sweep.Run(c.Request.Context(), date, now)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	admin.GET("/reports/monthly", func(c *gin.Context) {
		month, err := time.ParseInLocation("2006-01", c.Query("month"), loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "month must be YYYY-MM"})
			return
		}
		from := month
		to := month.AddDate(0, 1, -1)
		records, err := attRepo.ListRange(c.Request.Context(), from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		employees, err := rosterRepo.ListEmployees(c.Request.Context(), false)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		workbook, err := report.MonthlyXLSX(records, employees, month)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+report.Filename(month)+`"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := workbook.Write(c.Writer); err != nil {
			log.Printf("report write failed: %v", err)
		}
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(roster.DateLayout, s, loc)
}

// statusFor maps the attendance error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, attendance.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrData):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
