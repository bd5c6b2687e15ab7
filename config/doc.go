// Package config loads the inferqd daemon configuration from YAML.
//
// Load starts from Default, overlays the file, resolves credentials
// through package secret and validates the result:
//
//	server:
//	  addr: ":8080"
//	cache:
//	  backend: sqlite
//	  path: /var/lib/inferq/cache.db
//	  default_ttl: 10m
//	models:
//	  preload: ["stroke", "stroke@v1"]
//	auth:
//	  enabled: true
//	  api_keys:
//	    - id: oncall
//	      key: secretref:env:INFERQ_ONCALL_KEY
//	      principal: oncall
//	      roles: [operator]
package config
