package livereload

import "net/http"

// ScriptPath is where the client script is served.
const ScriptPath = "/livereload.js"

// EventsPath is the SSE endpoint.
const EventsPath = "/livereload"

// Script reloads the page on new hashes and overlays build errors.
const Script = `(() => {
  if (window.__ASSETPIPE_LR__) return;
  window.__ASSETPIPE_LR__ = true;
  let current = null;
  function overlay(e) {
    let el = document.getElementById('__assetpipe_error');
    if (!el) {
      el = document.createElement('pre');
      el.id = '__assetpipe_error';
      el.style.cssText = 'position:fixed;inset:0;margin:0;padding:2em;z-index:2147483647;background:rgba(20,0,0,.92);color:#ffb4b4;font:14px/1.5 monospace;white-space:pre-wrap;overflow:auto';
      document.body.appendChild(el);
    }
    el.textContent = '[' + e.stage + '] ' + e.message;
  }
  function connect() {
    const es = new EventSource('` + EventsPath + `');
    es.onmessage = (msg) => {
      let e;
      try { e = JSON.parse(msg.data); } catch (_) { return; }
      if (e.type === 'hello') { current = e.hash || ''; return; }
      if (e.type === 'error') { overlay(e); return; }
      if (e.type !== 'reload' || !e.hash) return;
      if (current !== null && e.hash !== current) { console.log('[assetpipe] change detected, reloading'); location.reload(); }
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`

// ScriptHandler serves Script.
func ScriptHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write([]byte(Script))
	})
}
