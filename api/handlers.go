package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"marqlet-monitor/domain"
	"marqlet-monitor/monitor"
)

const manualEntryMaxSize = 64 * 1024

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, checker DocketChecker, pubs Publications, reminders Reminders, auth Authenticator, logger *log.Logger) {
	e.POST("/api/cases/:caseId/movements/check", checkMovements(checker, auth, logger))
	e.GET("/api/publications", getPublications(pubs, auth))
	e.POST("/api/publications", postPublication(pubs, auth))
	e.POST("/api/publications/read", postPublicationRead(pubs, auth))
	e.POST("/api/reminders/run", postRemindersRun(reminders, auth))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func checkMovements(checker DocketChecker, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics := newCheckRequestMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		caseID := c.Param("caseId")
		if caseID == "" {
			metrics.SetErrorStage("missing_case_id")
			err = c.String(http.StatusBadRequest, "missing case id")
			return err
		}

		ingestStart := time.Now()
		result, checkErr := checker.CheckForNewMovements(ctx, userID, caseID)
		metrics.ObserveIngest(time.Since(ingestStart))
		if checkErr != nil {
			switch {
			case errors.Is(checkErr, domain.ErrCaseNotFound):
				metrics.SetErrorStage("case_not_found")
				err = c.String(http.StatusNotFound, "case not found")
			case errors.Is(checkErr, domain.ErrNotCaseOwner):
				metrics.SetErrorStage("forbidden")
				err = c.String(http.StatusForbidden, "not the case owner")
			default:
				metrics.SetErrorStage("ingest")
				c.Logger().Error(checkErr)
				err = c.String(http.StatusInternalServerError, checkErr.Error())
			}
			return err
		}

		metrics.SetNewCount(result.NewCount)
		err = c.JSON(http.StatusOK, result)
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

type publicationsResponse struct {
	Publications []domain.Publication `json:"publications"`
}

func getPublications(pubs Publications, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var list []domain.Publication
		if caseID := c.QueryParam("caseId"); caseID != "" {
			list, err = pubs.ListForCase(ctx, userID, caseID)
		} else {
			list, err = pubs.ListForUser(ctx, userID)
		}
		if err != nil {
			return publicationError(c, err)
		}
		return c.JSON(http.StatusOK, publicationsResponse{Publications: list})
	}
}

type manualEntryRequest struct {
	CaseID       string    `json:"caseId"`
	MovementName string    `json:"movementName"`
	Content      string    `json:"content"`
	PublishedAt  time.Time `json:"publishedAt"`
}

func postPublication(pubs Publications, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		lr := io.LimitReader(c.Request().Body, manualEntryMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var req manualEntryRequest
		if err := dec.Decode(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.CaseID == "" || req.MovementName == "" {
			return c.String(http.StatusBadRequest, "caseId and movementName are required")
		}
		if req.PublishedAt.IsZero() {
			req.PublishedAt = time.Now().UTC()
		}

		pub, err := pubs.CreateManual(ctx, userID, req.CaseID, monitor.ManualEntry{
			MovementName: req.MovementName,
			Content:      req.Content,
			PublishedAt:  req.PublishedAt,
		})
		if err != nil {
			return publicationError(c, err)
		}
		return c.JSON(http.StatusCreated, pub)
	}
}

type markReadRequest struct {
	CaseID      string `json:"caseId"`
	IdentityKey string `json:"identityKey"`
}

func postPublicationRead(pubs Publications, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		lr := io.LimitReader(c.Request().Body, manualEntryMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var req markReadRequest
		if err := dec.Decode(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.CaseID == "" || req.IdentityKey == "" {
			return c.String(http.StatusBadRequest, "caseId and identityKey are required")
		}

		if err := pubs.MarkRead(ctx, userID, req.CaseID, req.IdentityKey); err != nil {
			return publicationError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type remindersResponse struct {
	Claimed []domain.Task `json:"claimed"`
}

func postRemindersRun(reminders Reminders, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		claimed, err := reminders.RunForUser(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, remindersResponse{Claimed: claimed})
	}
}

func publicationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrCaseNotFound):
		return c.String(http.StatusNotFound, "case not found")
	case errors.Is(err, domain.ErrNotCaseOwner):
		return c.String(http.StatusForbidden, "not the case owner")
	case errors.Is(err, domain.ErrPublicationNotFound):
		return c.String(http.StatusNotFound, "publication not found")
	default:
		c.Logger().Error(err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
}
