package config

import (
	"encoding/json"
	"log"
	"os"
)

type Config struct {
	Token      string
	GuildID    string
	MySQLDSN   string
	RedisURL   string
	OpsPort    string
	OpsToken   string
	RoleGroups map[string][]string
}

func Load() Config {
	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		log.Fatal("DISCORD_TOKEN not set in environment")
	}
	guildID := os.Getenv("GUILD_ID")
	if guildID == "" {
		log.Fatal("GUILD_ID not set in environment")
	}

	return Config{
		Token:      token,
		GuildID:    guildID,
		MySQLDSN:   getenv("MYSQL_DSN", "schedbot:schedbot@tcp(127.0.0.1:3306)/schedbot?parseTime=true"),
		RedisURL:   os.Getenv("REDIS_URL"),
		OpsPort:    os.Getenv("OPS_PORT"),
		OpsToken:   os.Getenv("OPS_TOKEN"),
		RoleGroups: ParseRoleGroups(os.Getenv("ROLE_GROUPS")),
	}
}

// ParseRoleGroups reads the label-to-role-ids mapping from its JSON form.
// Malformed input degrades to an empty mapping; role bucketing is optional
// and must never block startup.
func ParseRoleGroups(raw string) map[string][]string {
	if raw == "" {
		return map[string][]string{}
	}
	var groups map[string][]string
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		log.Printf("config: malformed ROLE_GROUPS, role bucketing disabled: %v", err)
		return map[string][]string{}
	}
	return groups
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
