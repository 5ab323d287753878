package api

import "net/http"

// handleDashboard serves the embedded single-page dashboard at "/". It's
// a minimal HTML page with zero build dependencies, matching the way
// this was done before any framework was introduced: fetch the request
// list on load, then keep it live over the WebSocket feed.
func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(dashboardHTML))
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>AgentProbe</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
         background: #0f1117; color: #e1e4e8; padding: 24px; }
  h1 { font-size: 24px; margin-bottom: 8px; }
  .subtitle { color: #8b949e; margin-bottom: 24px; }
  .grid { display: grid; grid-template-columns: 1fr 1fr 1fr; gap: 16px; margin-bottom: 24px; }
  .card { background: #161b22; border: 1px solid #30363d; border-radius: 8px; padding: 16px; }
  .card h2 { font-size: 13px; color: #8b949e; text-transform: uppercase; margin-bottom: 8px; }
  .card .value { font-size: 22px; }
  table { width: 100%; border-collapse: collapse; font-size: 13px; }
  th { text-align: left; color: #8b949e; padding: 6px 8px; border-bottom: 1px solid #30363d; }
  td { padding: 6px 8px; border-bottom: 1px solid #21262d; }
  .streaming { color: #58a6ff; }
  .status-2xx { color: #3fb950; }
  .status-4xx, .status-5xx { color: #f85149; }
</style>
</head>
<body>
  <h1>AgentProbe</h1>
  <div class="subtitle">Live LLM agent traffic capture</div>

  <div class="grid">
    <div class="card"><h2>Requests</h2><div class="value" id="stat-total">-</div></div>
    <div class="card"><h2>Streaming</h2><div class="value" id="stat-streaming">-</div></div>
    <div class="card"><h2>Unique Agents</h2><div class="value" id="stat-agents">-</div></div>
  </div>

  <div class="card">
    <h2>Recent Requests</h2>
    <table>
      <thead>
        <tr><th>Seq</th><th>Agent</th><th>Method</th><th>Host</th><th>Status</th><th>Duration</th></tr>
      </thead>
      <tbody id="requests-body"></tbody>
    </table>
  </div>

<script>
function statusClass(code) {
  if (!code) return '';
  if (code < 400) return 'status-2xx';
  if (code < 500) return 'status-4xx';
  return 'status-5xx';
}

function renderRow(r) {
  return '<tr>' +
    '<td>' + r.sequence + '</td>' +
    '<td>' + (r.agent_type || '') + '</td>' +
    '<td>' + r.method + '</td>' +
    '<td>' + r.host + '</td>' +
    '<td class="' + statusClass(r.status_code) + '">' + (r.status_code || (r.is_streaming ? '<span class="streaming">streaming</span>' : '...')) + '</td>' +
    '<td>' + (r.duration_ms ? Math.round(r.duration_ms) + 'ms' : '') + '</td>' +
    '</tr>';
}

function loadRequests() {
  fetch('/api/requests?limit=50&order_by=sequence%20DESC')
    .then(function(resp) { return resp.json(); })
    .then(function(rows) {
      document.getElementById('requests-body').innerHTML = rows.map(renderRow).join('');
    });
}

function loadStats() {
  fetch('/api/stats')
    .then(function(resp) { return resp.json(); })
    .then(function(s) {
      document.getElementById('stat-total').textContent = s.total_requests;
      document.getElementById('stat-streaming').textContent = s.streaming_count;
      document.getElementById('stat-agents').textContent = s.unique_agents;
    });
}

loadRequests();
loadStats();

var ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
ws.onmessage = function() {
  loadRequests();
  loadStats();
};
</script>
</body>
</html>
`
