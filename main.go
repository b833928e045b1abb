package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/openpolls/api.openpolls.dev/auth"
	"github.com/openpolls/api.openpolls.dev/configure"
	"github.com/openpolls/api.openpolls.dev/mongo"
	"github.com/openpolls/api.openpolls.dev/redis"
	"github.com/openpolls/api.openpolls.dev/server"
)

func main() {
	log.Infoln("Application Starting...")

	configCode := configure.Config.GetInt("exit_code")
	if configCode > 125 || configCode < 0 {
		log.Warnf("Invalid exit code specified in config (%v), using 0 as new exit code.", configCode)
		configCode = 0
	}

	ctx := context.TODO()

	rdb, err := redis.New(configure.Config.GetString("redis_uri"))
	if err != nil {
		log.Fatalf("redis, err=%v", err)
	}

	db, err := mongo.Connect(ctx, configure.Config.GetString("mongo_uri"), configure.Config.GetString("mongo_db"))
	if err != nil {
		log.Fatalf("mongo, err=%v", err)
	}

	perms := auth.NewTable(configure.Config.GetStringMapStringSlice("roles"))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	s := server.NewServer(server.Options{
		ListenerNetwork: configure.Config.GetString("listener_network"),
		ListenerAddress: configure.Config.GetString("listener_address"),
		AccessTokenKey:  configure.Config.GetString("access_token_key"),
		RefreshTokenKey: configure.Config.GetString("refresh_token_key"),
		AccessTokenTTL:  time.Duration(configure.Config.GetInt("access_token_exp")) * time.Second,
		RefreshTokenTTL: time.Duration(configure.Config.GetInt("refresh_token_exp")) * time.Second,
		BcryptCost:      configure.Config.GetInt("bcrypt_cost"),
		Perms:           perms,
		Store:           mongo.NewStore(db, rdb),
	})

	go func() {
		sig := <-c
		log.Infof("sig=%v, gracefully shutting down...", sig)
		start := time.Now().UnixNano()

		wg := sync.WaitGroup{}
		wg.Add(1)

		go func() {
			defer wg.Done()
			if err := s.Shutdown(); err != nil {
				log.Errorf("server, shutdown=%v", err)
			}
		}()

		wg.Wait()

		log.Infof("Shutdown took, %.2fms", float64(time.Now().UnixNano()-start)/10e5)
		os.Exit(configCode)
	}()

	log.Infoln("Application Started.")

	select {}
}
