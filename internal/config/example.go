package config

// Example is a commented configuration file covering every transport type.
const Example = `# mailer configuration
default_from: robot@example.org
default_from_name: Robot
max_attachment_size: 25MB

logging:
  level: info

sentry:
  dsn: ""
  environment: production

transports:
  # Save every message into a directory
  - type: file
    dir: ./mails

  # Relay through an SMTP server over implicit TLS with authentication
  - type: smtp
    host: smtp.example.org
    port: 465
    ssl: true
    login: robot@example.org
    password: secret
    timeout: 30s

  # Internal relay for one domain only, no authentication
  - type: smtp
    host: 192.168.0.1
    only_domains: [corp.example.org]

  # - type: stdout
  #   eml: false
  # - type: sendmail
  #   path: /usr/sbin/sendmail
  # - type: ses
  #   region: eu-west-1
  #   max_attempts: 3
  # - type: graph
  #   tenant_id: 00000000-0000-0000-0000-000000000000
  #   client_id: 00000000-0000-0000-0000-000000000000
  #   client_secret: secret
  #   sender: robot@example.org
  # - type: s3
  #   bucket: mail-archive
  #   region: eu-west-1
  #   prefix: outbound
  # - type: resend
  #   api_key: re_xxxxxxxx
`
