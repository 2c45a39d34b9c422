package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/webzeppelin/angry-birdman-sub002/internal/domain"
	custommw "github.com/webzeppelin/angry-birdman-sub002/internal/middleware"
	"github.com/webzeppelin/angry-birdman-sub002/internal/service"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

const actorHeader = "X-Actor"

// Server is the HTTP surface over the battle and schedule services.
// Authentication happens upstream; the actor identity arrives as a
// request header.
type Server struct {
	battleSvc    *service.BattleService
	schedulerSvc *service.SchedulerService
	logger       zerolog.Logger
}

func New(battleSvc *service.BattleService, schedulerSvc *service.SchedulerService, logger zerolog.Logger) *Server {
	return &Server{battleSvc: battleSvc, schedulerSvc: schedulerSvc, logger: logger}
}

// Echo builds the configured router.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(custommw.RequestID(s.logger))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	v1 := e.Group("/v1")
	v1.GET("/clans/:clanId/battles", s.getBattles)
	v1.GET("/clans/:clanId/battles/:battleId", s.getBattle)
	v1.POST("/clans/:clanId/battles", s.createBattle)
	v1.PUT("/clans/:clanId/battles/:battleId", s.updateBattle)
	v1.DELETE("/clans/:clanId/battles/:battleId", s.deleteBattle)

	v1.GET("/clans/:clanId/members", s.getMembers)
	v1.PUT("/clans/:clanId/members/:playerId", s.upsertMember)

	v1.GET("/schedule", s.getScheduleInfo)
	v1.GET("/schedule/next", s.getNextBattleDate)
	v1.PUT("/schedule/next", s.updateNextBattleDate)
	v1.POST("/schedule/battles", s.createManualBattle)
	v1.PUT("/schedule/battles/:battleId/notes", s.updateBattleNotes)
	v1.POST("/schedule/check", s.checkSchedule)

	return e
}

func (s *Server) getBattles(c echo.Context) error {
	battles, err := s.battleSvc.GetBattles(c.Request().Context(), c.Param("clanId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, battles)
}

func (s *Server) getBattle(c echo.Context) error {
	battle, err := s.battleSvc.GetBattleByID(c.Request().Context(), c.Param("clanId"), c.Param("battleId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, battle)
}

func (s *Server) createBattle(c echo.Context) error {
	var input service.BattleInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	battle, err := s.battleSvc.CreateBattle(c.Request().Context(), c.Param("clanId"), &input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, battle)
}

func (s *Server) updateBattle(c echo.Context) error {
	var input service.BattleUpdateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	battle, err := s.battleSvc.UpdateBattle(c.Request().Context(), c.Param("clanId"), c.Param("battleId"), &input)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, battle)
}

func (s *Server) deleteBattle(c echo.Context) error {
	if err := s.battleSvc.DeleteBattle(c.Request().Context(), c.Param("clanId"), c.Param("battleId")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getMembers(c echo.Context) error {
	members, err := s.battleSvc.GetMembers(c.Request().Context(), c.Param("clanId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, members)
}

type memberRequest struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

func (s *Server) upsertMember(c echo.Context) error {
	var req memberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	member := &domain.ClanMember{
		ClanID:   c.Param("clanId"),
		PlayerID: c.Param("playerId"),
		Name:     req.Name,
		Active:   req.Active,
	}
	if err := s.battleSvc.UpsertMember(c.Request().Context(), member); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, member)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) updateBattleNotes(c echo.Context) error {
	var req notesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	battle, err := s.schedulerSvc.UpdateBattleNotes(c.Request().Context(), c.Param("battleId"), req.Notes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, battle)
}

func (s *Server) getScheduleInfo(c echo.Context) error {
	info, err := s.schedulerSvc.GetScheduleInfo(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) getNextBattleDate(c echo.Context) error {
	next, err := s.schedulerSvc.GetNextBattleDate(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"nextBattleAt": next})
}

type scheduleUpdateRequest struct {
	NextBattleDate string `json:"nextBattleDate"`
	Enabled        bool   `json:"enabled"`
}

func (s *Server) updateNextBattleDate(c echo.Context) error {
	var req scheduleUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	date, err := time.Parse(time.RFC3339, req.NextBattleDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "nextBattleDate must be RFC3339")
	}
	if err := s.schedulerSvc.UpdateNextBattleDate(c.Request().Context(), date, req.Enabled); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type manualBattleRequest struct {
	Date string `json:"date"`
}

func (s *Server) createManualBattle(c echo.Context) error {
	var req manualBattleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be RFC3339")
	}
	battle, err := s.schedulerSvc.CreateManualBattle(c.Request().Context(), date, c.Request().Header.Get(actorHeader))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, battle)
}

func (s *Server) checkSchedule(c echo.Context) error {
	s.schedulerSvc.CheckAndAdvance(c.Request().Context())
	return c.NoContent(http.StatusAccepted)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case domain.IsValidation(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
