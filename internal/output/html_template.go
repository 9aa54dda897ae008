package output

// htmlTemplate is the HTML report. Charts are drawn with Chart.js from the
// per-interval time series.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Name}} - Object Storage Load Test</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f8fafc;
            --text-primary: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
            --accent-primary: #3b82f6;
            --accent-success: #22c55e;
            --accent-warning: #f59e0b;
            --accent-error: #ef4444;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.1);
        }

        [data-theme="dark"] {
            --bg-primary: #1e293b;
            --bg-secondary: #0f172a;
            --text-primary: #f1f5f9;
            --text-secondary: #94a3b8;
            --border-color: #334155;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.3);
        }

        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background-color: var(--bg-secondary);
            color: var(--text-primary);
            line-height: 1.6;
        }

        .container { max-width: 1200px; margin: 0 auto; padding: 2rem; }

        .header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            margin-bottom: 2rem;
        }
        .header .meta { color: var(--text-secondary); font-size: 0.9rem; }

        .status { padding: 0.5rem 1.25rem; border-radius: 9999px; font-weight: 600; color: #fff; }
        .status.pass { background: var(--accent-success); }
        .status.fail { background: var(--accent-error); }

        .messages { margin-bottom: 2rem; color: var(--accent-error); }

        .metrics-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(180px, 1fr));
            gap: 1rem;
            margin-bottom: 2rem;
        }
        .metric-card {
            background: var(--bg-primary);
            border: 1px solid var(--border-color);
            border-radius: 0.75rem;
            padding: 1.25rem;
            box-shadow: var(--shadow);
        }
        .metric-card .label { color: var(--text-secondary); font-size: 0.8rem; text-transform: uppercase; }
        .metric-card .value { font-size: 1.6rem; font-weight: 700; }

        .section {
            background: var(--bg-primary);
            border: 1px solid var(--border-color);
            border-radius: 0.75rem;
            padding: 1.5rem;
            margin-bottom: 2rem;
            box-shadow: var(--shadow);
        }
        .section-title { font-size: 1.1rem; font-weight: 600; margin-bottom: 1rem; }

        .stats-table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
        .stats-table th, .stats-table td { padding: 0.6rem; text-align: right; border-bottom: 1px solid var(--border-color); }
        .stats-table th:first-child, .stats-table td:first-child { text-align: left; }
        .stats-table th { color: var(--text-secondary); font-weight: 500; }

        .code.ok { color: var(--accent-success); }
        .code.warn { color: var(--accent-warning); }
        .code.error, .code.client { color: var(--accent-error); }

        .chart-wrapper { position: relative; height: 280px; }

        .footer { text-align: center; color: var(--text-secondary); font-size: 0.8rem; }
        .theme-toggle { cursor: pointer; border: 1px solid var(--border-color); background: none; color: var(--text-primary); border-radius: 0.5rem; padding: 0.25rem 0.75rem; margin-left: 1rem; }
    </style>
</head>
<body>
    <div class="container">
        <header class="header">
            <div>
                <h1>{{.Name}}</h1>
                <div class="meta">
                    {{.Result.Start.Format "2006-01-02 15:04:05"}} · {{duration .Result.Duration}}{{if .Target}} · {{.Target}}{{end}}
                </div>
            </div>
            <div>
                <span class="status {{if .Result.Success}}pass{{else}}fail{{end}}">
                    {{if .Result.Success}}✓ PASSED{{else}}✗ FAILED{{end}}
                </span>
                <button class="theme-toggle" onclick="toggleTheme()">◐</button>
            </div>
        </header>

        {{if .Result.Messages}}
        <div class="messages">
            {{range .Result.Messages}}<p>{{.}}</p>{{end}}
        </div>
        {{end}}

        <div class="metrics-grid">
            <div class="metric-card">
                <div class="label">Requests</div>
                <div class="value">{{number .Stats.Total.Requests}}</div>
            </div>
            <div class="metric-card">
                <div class="label">Throughput</div>
                <div class="value">{{printf "%.1f" .Stats.RPS}} req/s</div>
            </div>
            <div class="metric-card">
                <div class="label">Bandwidth</div>
                <div class="value">{{rate .Stats.Throughput}}</div>
            </div>
            <div class="metric-card">
                <div class="label">Error Rate</div>
                <div class="value">{{percent .Stats.ErrorRate}}</div>
            </div>
            <div class="metric-card">
                <div class="label">P95 Latency</div>
                <div class="value">{{latency .Stats.Total.Latency.P95}}</div>
            </div>
            <div class="metric-card">
                <div class="label">Client Failures</div>
                <div class="value">{{number .Stats.ClientFailures}}</div>
            </div>
        </div>

        {{if .Stats.TimeSeries}}
        <div class="section">
            <div class="section-title">Requests per second</div>
            <div class="chart-wrapper"><canvas id="rpsChart"></canvas></div>
        </div>
        {{end}}

        <div class="section">
            <div class="section-title">Operations</div>
            <table class="stats-table">
                <thead>
                    <tr>
                        <th>Operation</th><th>Requests</th><th>Success</th><th>Transferred</th>
                        <th>Mean</th><th>P50</th><th>P90</th><th>P95</th><th>P99</th><th>Max</th>
                    </tr>
                </thead>
                <tbody>
                    {{range .Operations}}
                    <tr>
                        <td>{{.Name}}</td>
                        <td>{{number .Requests}}</td>
                        <td>{{successRate .OperationStats}}</td>
                        <td>{{bytes .Bytes}}</td>
                        <td>{{latency .Latency.Mean}}</td>
                        <td>{{latency .Latency.P50}}</td>
                        <td>{{latency .Latency.P90}}</td>
                        <td>{{latency .Latency.P95}}</td>
                        <td>{{latency .Latency.P99}}</td>
                        <td>{{latency .Latency.Max}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>

        {{if .StatusCodes}}
        <div class="section">
            <div class="section-title">Status codes</div>
            <table class="stats-table">
                <thead><tr><th>Code</th><th>Count</th></tr></thead>
                <tbody>
                    {{range .StatusCodes}}
                    <tr>
                        <td class="code {{.Class}}">{{.Code}}{{if eq .Class "client"}} (client){{end}}</td>
                        <td>{{number .Count}}</td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
        </div>
        {{end}}

        <footer class="footer">
            <p>Generated by surge · {{.Result.Finish.Format "2006-01-02 15:04:05 MST"}}</p>
        </footer>
    </div>

    <script>
        function toggleTheme() {
            const html = document.documentElement;
            const theme = html.getAttribute('data-theme') === 'dark' ? 'light' : 'dark';
            html.setAttribute('data-theme', theme);
            localStorage.setItem('theme', theme);
        }
        document.documentElement.setAttribute('data-theme', localStorage.getItem('theme') || 'light');

        const timeSeriesData = {{.TimeSeriesJSON}};
        const canvas = document.getElementById('rpsChart');
        if (canvas && timeSeriesData.length > 0) {
            new Chart(canvas.getContext('2d'), {
                type: 'line',
                data: {
                    labels: timeSeriesData.map(d => d.t + 's'),
                    datasets: [
                        {
                            label: 'Requests/sec',
                            data: timeSeriesData.map(d => d.rps),
                            borderColor: '#3b82f6',
                            backgroundColor: '#3b82f620',
                            fill: true,
                            tension: 0.3,
                            pointRadius: 0,
                        },
                        {
                            label: 'Failures',
                            data: timeSeriesData.map(d => d.failures),
                            borderColor: '#ef4444',
                            backgroundColor: 'transparent',
                            tension: 0.3,
                            pointRadius: 0,
                        },
                    ]
                },
                options: {
                    responsive: true,
                    maintainAspectRatio: false,
                    interaction: { mode: 'index', intersect: false },
                    scales: { y: { beginAtZero: true } },
                }
            });
        }
    </script>
</body>
</html>
`
