package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"JiraAlerts/internal/adapter/http/ctrl"
	"JiraAlerts/internal/app"
	"JiraAlerts/internal/repo"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")

	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("request_timeout", "10s")
	viper.SetDefault("close_transitions", []string{"Resolve Issue", "Close Issue", "Done", "Close"})
	viper.SetDefault("reopen_transitions", []string{"Reopen Issue", "Reopen", "In Progress"})
	viper.SetDefault("resolved_statuses", []string{"Resolved", "Closed", "Done", "Complete"})

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatalf("Error reading config file: %v", err)
		}
		log.Info("No config file found, using defaults")
	}
}

func initLogger() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level, err := log.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		log.Warnf("Invalid log level %q, defaulting to info", viper.GetString("log_level"))
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <jira-url>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	server := flag.Arg(0)
	if server == "" {
		flag.Usage()
		os.Exit(2)
	}

	initConfig()
	initLogger()

	username := os.Getenv("JIRA_USERNAME")
	password := os.Getenv("JIRA_PASSWORD")
	if username == "" || password == "" {
		log.Fatalf("JIRA_USERNAME and JIRA_PASSWORD must be set")
	}

	tracker, err := repo.NewJiraTracker(server, username, password, viper.GetDuration("request_timeout"))
	if err != nil {
		log.Fatalf("Error creating JIRA client: %v", err)
	}

	reconciler := app.NewIssueReconciler(tracker, app.Config{
		CloseTransitions:  viper.GetStringSlice("close_transitions"),
		ReopenTransitions: viper.GetStringSlice("reopen_transitions"),
		ResolvedStatuses:  viper.GetStringSlice("resolved_statuses"),
	})

	router := mux.NewRouter()
	ctrl.NewIssueController(reconciler).Register(router)

	addr := viper.GetString("listen_addr")
	log.Infof("Starting server on %s, tracker %s", addr, server)
	log.Fatal(http.ListenAndServe(addr, router))
}
