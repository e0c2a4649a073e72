package live

import (
	"html/template"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { margin: 0; font-family: sans-serif; background: #f9fafb; }
header { display: flex; gap: 8px; padding: 8px; align-items: center; border-bottom: 1px solid #e5e7eb; }
main { display: flex; height: calc(100vh - 50px); }
#stage { flex: 1; touch-action: none; }
#stage svg { display: block; width: 100%; height: 100%; }
aside { width: 320px; overflow-y: auto; border-left: 1px solid #e5e7eb; background: #fff; }
aside table { width: 100%; border-collapse: collapse; font-size: 13px; }
aside th, aside td { padding: 4px 8px; text-align: left; border-bottom: 1px solid #f3f4f6; }
aside button { font-size: 12px; }
</style>
</head>
<body>
<header>
  <input id="name" placeholder="Search by name">
  <select id="type">
    <option value="">All types</option>
    {{range .Types}}<option>{{.}}</option>{{end}}
  </select>
  <button id="search">Search</button>
  <button id="reset">Reset view</button>
  <button id="fit">Fit</button>
</header>
<main>
  <div id="stage"></div>
  <aside>
    <table>
      <thead><tr><th>Name</th><th>Type</th><th>Confidence</th><th></th></tr></thead>
      <tbody id="entities"></tbody>
    </table>
  </aside>
</main>
<script>
(function () {
  var stage = document.getElementById("stage");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/live/{{.Session}}");
  ws.binaryType = "arraybuffer";

  function varint(out, v) {
    v = Math.round(v * 100);
    var z = v < 0 ? -2 * v - 1 : 2 * v;
    while (z >= 0x80) { out.push((z % 0x80) | 0x80); z = Math.floor(z / 0x80); }
    out.push(z);
  }
  function pointer(kind, e, dy) {
    if (ws.readyState !== 1) return;
    var r = stage.getBoundingClientRect();
    var out = [1, kind];
    varint(out, e.clientX - r.left);
    varint(out, e.clientY - r.top);
    varint(out, dy || 0);
    ws.send(new Uint8Array(out));
  }
  function control(msg) {
    if (ws.readyState === 1) ws.send(JSON.stringify(msg));
  }
  function resize() {
    control({type: "resize", width: stage.clientWidth, height: stage.clientHeight});
  }

  function cell(row, text) {
    var td = document.createElement("td");
    td.textContent = text;
    row.appendChild(td);
  }
  function entities(list) {
    var body = document.getElementById("entities");
    body.textContent = "";
    list.forEach(function (e) {
      var row = document.createElement("tr");
      cell(row, e.label);
      cell(row, e.type);
      cell(row, e.confidence || "-");
      var td = document.createElement("td");
      var btn = document.createElement("button");
      btn.textContent = "Explore";
      btn.onclick = function () { control({type: "select", id: e.id}); };
      td.appendChild(btn);
      row.appendChild(td);
      body.appendChild(row);
    });
  }

  ws.onopen = resize;
  ws.onmessage = function (m) {
    if (typeof m.data !== "string") return;
    if (m.data.charAt(0) === "{") {
      var msg = JSON.parse(m.data);
      if (msg.type === "entities") entities(msg.entities);
      return;
    }
    stage.innerHTML = m.data;
  };
  stage.addEventListener("mousedown", function (e) { pointer(1, e); });
  stage.addEventListener("mousemove", function (e) { pointer(2, e); });
  stage.addEventListener("mouseup", function (e) { pointer(3, e); });
  stage.addEventListener("mouseleave", function (e) { pointer(5, e); });
  stage.addEventListener("wheel", function (e) { e.preventDefault(); pointer(4, e, e.deltaY); }, {passive: false});
  window.addEventListener("resize", resize);

  document.getElementById("search").onclick = function () {
    control({type: "search", name: document.getElementById("name").value,
      entity_type: document.getElementById("type").value, limit: 100});
  };
  document.getElementById("reset").onclick = function () { control({type: "reset"}); };
  document.getElementById("fit").onclick = function () { control({type: "fit"}); };
})();
</script>
</body>
</html>
`))

type pageData struct {
	Title   string
	Session string
	Types   []string
}

// handlePage serves the viewer page with a fresh session id.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:   "Knowledge Graph",
		Session: uuid.NewString(),
		Types:   entityTypeNames(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.log.Error("failed to render page", zap.Error(err))
	}
}
