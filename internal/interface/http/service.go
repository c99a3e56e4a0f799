package httpservice

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ark-network/coinjoin/internal/config"
	"github.com/ark-network/coinjoin/internal/core/application"
	"github.com/ark-network/coinjoin/internal/core/ports"
	interfaces "github.com/ark-network/coinjoin/internal/interface"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type service struct {
	config    Config
	appConfig *config.Config
	server    *http.Server
}

func NewService(svcConfig Config, appConfig *config.Config) (interfaces.Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config: %s", err)
	}
	return &service{config: svcConfig, appConfig: appConfig}, nil
}

func (s *service) Start() error {
	appSvc, err := s.appConfig.AppService()
	if err != nil {
		return err
	}
	if err := appSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}
	log.Info("started app service")

	s.server = &http.Server{
		Addr:              s.config.address(),
		Handler:           newRouter(appSvc, s.appConfig.Transport()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()
	log.Infof("started listening at %s", s.config.address())
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.server != nil {
		//nolint:all
		s.server.Shutdown(ctx)
		log.Info("stopped http server")
	}

	appSvc, _ := s.appConfig.AppService()
	if appSvc != nil {
		appSvc.Stop()
		log.Info("stopped app service")
	}
}

func newRouter(appSvc application.Service, transport ports.Transport) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	h := newHandler(appSvc, transport)
	v1 := router.Group("/v1")

	v1.GET("/pools", h.getPools)
	v1.GET("/pools/:pool/rounds", h.getRoundOutcomes)
	v1.POST("/pools/:pool/inputs", h.registerInput)
	v1.DELETE("/pools/:pool/inputs", h.unregisterInput)

	v1.POST("/rounds/:round/confirm", h.confirmInput)
	v1.POST("/rounds/:round/outputs", h.registerOutput)
	v1.POST("/rounds/:round/reveal", h.revealOutput)
	v1.POST("/rounds/:round/signatures", h.signInput)

	v1.GET("/messages/:identity", h.getMessages)
	v1.POST("/board/:scope", h.postMessage)
	v1.GET("/session/:identity", h.getSession)

	return router
}
