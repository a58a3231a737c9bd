/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ldruley/tripmailer/pkg/apiresponses"
	"github.com/ldruley/tripmailer/pkg/email"
	"github.com/ldruley/tripmailer/pkg/ratelimit"
)

// EmailController exposes email submission and status lookup.
type EmailController struct {
	service *email.Service
	submit  *ratelimit.IPRateLimiter
	log     *zap.SugaredLogger
}

// NewEmailController creates the controller with its own tighter rate limit
// on the submission routes.
func NewEmailController(service *email.Service, log *zap.SugaredLogger) *EmailController {
	return &EmailController{
		service: service,
		submit:  ratelimit.New(ratelimit.DefaultSubmitConfig()),
		log:     log,
	}
}

func (ec *EmailController) BasePath() string { return "emails" }

func (ec *EmailController) Handlers() []gin.HandlerFunc { return nil }

func (ec *EmailController) Register(rg *gin.RouterGroup) error {
	submit := ec.submit.Middleware()
	rg.POST("", submit, ec.sendEmail)
	rg.POST("/welcome", submit, ec.sendWelcome)
	rg.POST("/password-reset", submit, ec.sendPasswordReset)
	rg.POST("/verification", submit, ec.sendVerification)
	rg.GET("/:id", ec.getStatus)
	return nil
}

// Stop releases the controller's rate limiter.
func (ec *EmailController) Stop() {
	ec.submit.Stop()
}

func (ec *EmailController) sendEmail(c *gin.Context) {
	var req email.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "invalid email request", err.Error())
		return
	}

	resp, err := ec.service.SendEmail(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, email.ErrUnknownTemplate) {
			apiresponses.RespondBadRequest(c, err.Error())
			return
		}
		apiresponses.RespondInternalError(c, "queue email", err, ec.log)
		return
	}
	apiresponses.RespondCreated(c, resp)
}

// flowRequest is the body of the built-in flow endpoints: the template and
// priority are fixed server-side, callers only supply the recipient and
// template variables.
type flowRequest struct {
	To        string         `json:"to" binding:"required"`
	Variables map[string]any `json:"variables"`
}

func (ec *EmailController) sendWelcome(c *gin.Context) {
	ec.sendFlow(c, ec.service.SendWelcomeEmail)
}

func (ec *EmailController) sendPasswordReset(c *gin.Context) {
	ec.sendFlow(c, ec.service.SendPasswordResetEmail)
}

func (ec *EmailController) sendVerification(c *gin.Context) {
	ec.sendFlow(c, ec.service.SendEmailVerification)
}

func (ec *EmailController) sendFlow(c *gin.Context, submit func(ctx context.Context, to string, variables map[string]any) (*email.Response, error)) {
	var req flowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiresponses.RespondBadRequestWithDetails(c, "invalid email request", err.Error())
		return
	}

	resp, err := submit(c.Request.Context(), req.To, req.Variables)
	if err != nil {
		apiresponses.RespondInternalError(c, "queue email", err, ec.log)
		return
	}
	apiresponses.RespondCreated(c, resp)
}

func (ec *EmailController) getStatus(c *gin.Context) {
	id := c.Param("id")
	resp, err := ec.service.GetEmailStatus(c.Request.Context(), id)
	if err != nil {
		apiresponses.RespondInternalError(c, "look up email status", err, ec.log)
		return
	}
	if resp == nil {
		apiresponses.RespondNotFound(c, "email", id)
		return
	}
	apiresponses.RespondOK(c, resp)
}
