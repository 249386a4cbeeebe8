package server

import (
    "html/template"
    "net/http"
)

// Minimal operator dashboard: upload a PDF, watch the run progress,
// read the recovered text. Everything else goes through the JSON API.
var dashboardTpl = template.Must(template.New("dashboard").Parse(`<!doctype html>
<html>
<head><title>examprep</title>
<style>
body { font-family: sans-serif; max-width: 720px; margin: 2em auto; }
progress { width: 100%; }
pre { white-space: pre-wrap; background: #f4f4f4; padding: 1em; }
</style>
</head>
<body>
<h1>examprep</h1>
<form id="f">
  <input type="file" name="file" accept="application/pdf" required>
  <input type="text" name="user_id" placeholder="user id" required>
  <button type="submit">Extract</button>
</form>
<progress id="p" max="100" value="0"></progress>
<div id="stage"></div>
<pre id="out"></pre>
<script>
document.getElementById('f').onsubmit = async (e) => {
  e.preventDefault();
  const resp = await fetch('/upload', {method: 'POST', body: new FormData(e.target)});
  const body = await resp.json();
  if (!resp.ok) { document.getElementById('stage').textContent = body.error; return; }
  const runID = body.run_id;
  const timer = setInterval(async () => {
    const st = await (await fetch('/progress/' + runID)).json();
    document.getElementById('p').value = st.progress;
    document.getElementById('stage').textContent = st.status + ' / ' + st.stage;
    if (st.status === 'done' || st.status === 'failed') {
      clearInterval(timer);
      if (st.status === 'done') {
        const res = await (await fetch('/result/' + runID)).json();
        document.getElementById('out').textContent = res.full_text;
      }
    }
  }, 500);
};
</script>
</body>
</html>`))

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/" {
        http.NotFound(w, r)
        return
    }
    w.Header().Set("Content-Type", "text/html; charset=utf-8")
    _ = dashboardTpl.Execute(w, nil)
}
