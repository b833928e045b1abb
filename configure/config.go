package configure

import (
	"bytes"
	"encoding/json"
	"strings"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/kr/pretty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type ServerCfg struct {
	Level           string              `mapstructure:"level" json:"level"`
	ConfigFile      string              `mapstructure:"config_file" json:"config_file"`
	ListenerNetwork string              `mapstructure:"listener_network" json:"listener_network"`
	ListenerAddress string              `mapstructure:"listener_address" json:"listener_address"`
	RedisURI        string              `mapstructure:"redis_uri" json:"redis_uri"`
	MongoURI        string              `mapstructure:"mongo_uri" json:"mongo_uri"`
	MongoDB         string              `mapstructure:"mongo_db" json:"mongo_db"`
	AccessTokenKey  string              `mapstructure:"access_token_key" json:"access_token_key"`
	RefreshTokenKey string              `mapstructure:"refresh_token_key" json:"refresh_token_key"`
	AccessTokenExp  int                 `mapstructure:"access_token_exp" json:"access_token_exp"`
	RefreshTokenExp int                 `mapstructure:"refresh_token_exp" json:"refresh_token_exp"`
	BcryptCost      int                 `mapstructure:"bcrypt_cost" json:"bcrypt_cost"`
	Roles           map[string][]string `mapstructure:"roles" json:"roles"`
	ExitCode        int                 `mapstructure:"exit_code" json:"exit_code"`
}

// default config
var defaultConf = ServerCfg{
	ConfigFile:      "config.yaml",
	ListenerNetwork: "tcp",
	ListenerAddress: ":3000",
	AccessTokenExp:  3600,
	RefreshTokenExp: 86400 * 7,
	BcryptCost:      10,
	Roles: map[string][]string{
		"user": {},
		"admin": {
			"user.list.all", "user.view.all", "user.modify", "user.modify.all",
			"user.update", "user.update.all", "user.delete",
			"poll.list.all", "poll.view.all", "poll.modify", "poll.modify.all",
			"poll.update", "poll.update.all", "poll.delete",
			"poll.comment.modify", "poll.comment.delete",
		},
	},
}

var Config = viper.New()

func initLog() {
	if l, err := log.ParseLevel(Config.GetString("level")); err == nil {
		log.SetLevel(l)
	}
	log.SetFormatter(&nested.Formatter{
		HideKeys:    true,
		FieldsOrder: []string{"component", "category"},
	})
}

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

func init() {
	// Default config
	b, _ := json.Marshal(defaultConf)
	defaultConfig := bytes.NewReader(b)
	viper.SetConfigType("json")
	checkErr(viper.ReadConfig(defaultConfig))
	checkErr(Config.MergeConfigMap(viper.AllSettings()))

	// Flags
	pflag.String("config_file", "config.yaml", "configure filename")
	pflag.String("level", "info", "Log level")
	pflag.String("listener_network", "tcp", "Network for the http listener.")
	pflag.String("listener_address", ":3000", "Address for the http listener.")
	pflag.String("redis_uri", "", "Address for the redis server.")
	pflag.String("mongo_uri", "", "Address for the mongodb server.")
	pflag.String("mongo_db", "", "Database for the mongodb connection.")
	pflag.String("access_token_key", "", "Signing key for access tokens.")
	pflag.String("refresh_token_key", "", "Signing key for refresh tokens.")
	pflag.Int("access_token_exp", 3600, "Access token lifetime in seconds.")
	pflag.Int("refresh_token_exp", 86400*7, "Refresh token lifetime in seconds.")
	pflag.Int("bcrypt_cost", 10, "Cost for password hashing.")
	pflag.Int("exit_code", 0, "Status code for successful and graceful shutdown, [0-125].")
	pflag.Parse()
	checkErr(Config.BindPFlags(pflag.CommandLine))

	// File
	Config.SetConfigFile(Config.GetString("config_file"))
	Config.AddConfigPath(".")
	err := Config.ReadInConfig()
	if err != nil {
		log.Warning(err)
		log.Info("Using default config")
	} else {
		checkErr(Config.MergeInConfig())
	}

	// Environment
	replacer := strings.NewReplacer(".", "_")
	Config.SetEnvKeyReplacer(replacer)
	Config.AllowEmptyEnv(true)
	Config.AutomaticEnv()

	// Log
	initLog()

	// Print final config
	c := ServerCfg{}
	checkErr(Config.Unmarshal(&c))
	log.Debugf("Current configurations: \n%# v", pretty.Formatter(c))
}
