// Package main hosts the jobwatch entrypoint.
//
// One invocation performs one pass: fetch the first site.max_pages listing
// pages, extract listings, drop those whose link is already in the CSV store,
// append the rest, optionally mirror them into Postgres, and email a digest.
// Schedule it with cron or a systemd timer.
//
// Configuration comes from built-in defaults, an optional YAML file (-config),
// an env file (-env, default .env) and the environment. Mail credentials are
// read from EMAIL_USER, EMAIL_PASS and RECIPIENT_EMAIL; any other key can be
// set as JOBWATCH_<SECTION>_<KEY>, e.g. JOBWATCH_SITE_MAX_PAGES=5.
//
// The process exits 0 once the run completes, even if some stages failed; the
// log file (logs/job_scraper.log) and the optional Pushgateway metrics report
// per-stage outcomes. It exits 1 only when startup fails.
package main
